package netutil

import "testing"

func TestExtractFilenameFromHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{
			name:   "absent",
			header: "",
			want:   "",
		},
		{
			name:   "bare inline",
			header: "inline",
			want:   "",
		},
		{
			name:   "bare attachment",
			header: "attachment",
			want:   "",
		},
		{
			name:   "quoted filename",
			header: `attachment; filename="file.pdf"`,
			want:   "file.pdf",
		},
		{
			name:   "unquoted filename",
			header: "attachment; filename=file.pdf",
			want:   "file.pdf",
		},
		{
			name:   "semicolon inside quotes",
			header: `attachment; filename="tl;dr.pdf"`,
			want:   "tl;dr.pdf",
		},
		{
			name:   "escaped quote inside quotes",
			header: `attachment; filename="a\"b.pdf"`,
			want:   `a"b.pdf`,
		},
		{
			name:   "uppercase extension",
			header: `attachment; filename="file.PdF"`,
			want:   "file.PdF",
		},
		{
			name:   "non-pdf extension rejected",
			header: `attachment; filename="notes.txt"`,
			want:   "",
		},
		{
			name:   "extended value wins over plain, plain first",
			header: "attachment; filename=no.pdf; filename*=utf-8''filename.pdf",
			want:   "filename.pdf",
		},
		{
			name:   "extended value wins over plain, extended first",
			header: "attachment; filename*=utf-8''filename.pdf; filename=no.pdf",
			want:   "filename.pdf",
		},
		{
			name:   "extended value without charset",
			header: "attachment; filename*=''filename.pdf",
			want:   "filename.pdf",
		},
		{
			name:   "percent-decoded utf-8",
			header: "attachment; filename*=utf-8''%e4%b8%ad%e6%96%87.pdf",
			want:   "中文.pdf",
		},
		{
			name:   "percent-decoded latin-1",
			header: "attachment; filename*=iso-8859-1''t%e4il.pdf",
			want:   "täil.pdf",
		},
		{
			name:   "literal percent preserved",
			header: "attachment; filename*=utf-8''100%.pdf",
			want:   "100%.pdf",
		},
		{
			name:   "continuation reassembly",
			header: "attachment; filename*0=filename; filename*1=.pdf",
			want:   "filename.pdf",
		},
		{
			name:   "continuation out of textual order",
			header: "attachment; filename*1=.pdf; filename*0=filename",
			want:   "filename.pdf",
		},
		{
			name:   "encoded continuation segments",
			header: "attachment; filename*0*=utf-8''%e4%b8%ad; filename*1*=%e6%96%87.pdf",
			want:   "中文.pdf",
		},
		{
			name:   "single extended beats continuation",
			header: "attachment; filename*0=no; filename*1=.pdf; filename*=utf-8''yes.pdf",
			want:   "yes.pdf",
		},
		{
			name:   "continuation beats plain",
			header: "attachment; filename=no.pdf; filename*0=file; filename*1=name.pdf",
			want:   "filename.pdf",
		},
		{
			name:   "parameter without value",
			header: "attachment; filename",
			want:   "",
		},
		{
			name:   "empty parameters",
			header: "; ;;",
			want:   "",
		},
		{
			name:   "non-filename parameters only",
			header: `attachment; creation-date="Wed, 12 Feb 1997 16:29:51 -0500"`,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractFilenameFromHeader(stubHeaders{"Content-Disposition": tt.header})
			if got != tt.want {
				t.Errorf("header %q: got %q, want %q", tt.header, got, tt.want)
			}
		})
	}
}
