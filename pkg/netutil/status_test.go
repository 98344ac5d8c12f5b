package netutil

import (
	"errors"
	"testing"
)

func TestValidateResponseStatus(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{200, true},
		{206, true},
		{0, false},
		{204, false},
		{302, false},
		{404, false},
		{500, false},
	}

	for _, tt := range tests {
		if got := ValidateResponseStatus(tt.status); got != tt.want {
			t.Errorf("ValidateResponseStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestCreateResponseStatusErrorMissing(t *testing.T) {
	const url = "https://example.com/doc.pdf"

	for _, status := range []int{404, 0} {
		err := CreateResponseStatusError(status, url)

		var missing *MissingPDFError
		if !errors.As(err, &missing) {
			t.Fatalf("status %d: got %T, want *MissingPDFError", status, err)
		}
		if missing.URL != url {
			t.Errorf("status %d: URL = %q, want %q", status, missing.URL, url)
		}
		if err.Error() != `Missing PDF "https://example.com/doc.pdf".` {
			t.Errorf("status %d: message = %q", status, err.Error())
		}
	}
}

func TestCreateResponseStatusErrorUnexpected(t *testing.T) {
	const url = "https://example.com/doc.pdf"

	err := CreateResponseStatusError(500, url)

	var unexpected *UnexpectedResponseError
	if !errors.As(err, &unexpected) {
		t.Fatalf("got %T, want *UnexpectedResponseError", err)
	}
	if unexpected.Status != 500 || unexpected.URL != url {
		t.Errorf("got status=%d url=%q", unexpected.Status, unexpected.URL)
	}
	if err.Error() != `Unexpected server response (500) while retrieving PDF "https://example.com/doc.pdf".` {
		t.Errorf("message = %q", err.Error())
	}
}
