package format

import "testing"

func TestFileSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 Bytes"},
		{1, "1 Bytes"},
		{1023, "1023 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1048576, "1 MB"},
		{1073741824, "1 GB"},
		{5 * 1099511627776, "5120 GB"},
		{1234567, "1.18 MB"},
	}

	for _, tt := range tests {
		if got := FileSize(tt.bytes); got != tt.want {
			t.Errorf("FileSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}
