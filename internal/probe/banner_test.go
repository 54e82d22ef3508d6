package probe

import (
	"errors"
	"testing"
)

func TestBannerParser_Parse(t *testing.T) {
	t.Parallel()

	parser := NewBannerParser("Rails", "Ruby")

	tests := map[string]struct {
		body    string
		want    Banner
		wantErr bool
	}{
		"three part version": {
			body: "Rails version: 3.2.22\nRuby version: 1.9.3\nRuby engine: ruby\n",
			want: Banner{FrameworkVersion: "3.2.22", RuntimeVersion: "1.9.3", RuntimeEngine: "ruby"},
		},
		"four part version": {
			body: "Rails version: 4.2.11.3\nRuby version: 2.6.10\nRuby engine: ruby",
			want: Banner{FrameworkVersion: "4.2.11.3", RuntimeVersion: "2.6.10", RuntimeEngine: "ruby"},
		},
		"loose whitespace and case": {
			body: "\n  rails VERSION :  5.0.7\n\n  ruby version:2.4.1p111  \n ruby engine : jruby \n",
			want: Banner{FrameworkVersion: "5.0.7", RuntimeVersion: "2.4.1p111", RuntimeEngine: "jruby"},
		},
		"empty engine": {
			body: "Rails version: 3.0.20\nRuby version: 1.8.7\nRuby engine:",
			want: Banner{FrameworkVersion: "3.0.20", RuntimeVersion: "1.8.7", RuntimeEngine: ""},
		},
		"html welcome page": {
			body:    "<html><body>Welcome aboard</body></html>",
			wantErr: true,
		},
		"version not numeric": {
			body:    "Rails version: edge\nRuby version: 2.6.10\nRuby engine: ruby",
			wantErr: true,
		},
		"missing engine line": {
			body:    "Rails version: 4.2.0\nRuby version: 2.6.10",
			wantErr: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := parser.Parse(tc.body)
			if tc.wantErr {
				if !errors.Is(err, ErrBannerMismatch) {
					t.Fatalf("Parse() error = %v, want ErrBannerMismatch", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Parse() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestBannerParser_OtherFramework(t *testing.T) {
	t.Parallel()

	parser := NewBannerParser("Hanami", "Ruby")
	if _, err := parser.Parse("Rails version: 4.2.0\nRuby version: 2.6.10\nRuby engine: ruby"); err == nil {
		t.Error("a Rails banner should not satisfy a Hanami parser")
	}
	got, err := parser.Parse("Hanami version: 2.0.3\nRuby version: 3.2.2\nRuby engine: ruby")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got.FrameworkVersion != "2.0.3" {
		t.Errorf("FrameworkVersion = %q", got.FrameworkVersion)
	}
}
