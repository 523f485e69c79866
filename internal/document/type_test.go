package document

import "testing"

func TestType_FileNameRoundTrip(t *testing.T) {
	tests := []struct {
		typ  Type
		file string
		str  string
	}{
		{Global(), "global.crdt", "global"},
		{Project("p-1"), "project_p-1.crdt", "project:p-1"},
		{Project("0195f3a2-7c1e"), "project_0195f3a2-7c1e.crdt", "project:0195f3a2-7c1e"},
	}

	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			if got := tt.typ.FileName(); got != tt.file {
				t.Errorf("FileName() = %q, want %q", got, tt.file)
			}
			if got := tt.typ.String(); got != tt.str {
				t.Errorf("String() = %q, want %q", got, tt.str)
			}
			parsed, err := ParseFileName(tt.file)
			if err != nil {
				t.Fatalf("ParseFileName() failed: %v", err)
			}
			if parsed != tt.typ {
				t.Errorf("ParseFileName() = %v, want %v", parsed, tt.typ)
			}
		})
	}
}

func TestParseFileName_Invalid(t *testing.T) {
	for _, name := range []string{"global.json", "project_.crdt", "other.crdt", "global.crdt.tmp-123"} {
		if _, err := ParseFileName(name); err == nil {
			t.Errorf("ParseFileName(%q) should fail", name)
		}
	}
}
