package uploads

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllowedFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"data.csv", true},
		{"DATA.CSV", true},
		{"archive.tar.csv", true},
		{".csv", true},
		{"data.txt", false},
		{"data", false},
		{"data.csv.exe", false},
		{"csv", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AllowedFile(tt.name))
		})
	}
}

func TestSecureFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My cool movie.mov", "My_cool_movie.mov"},
		{"../../../etc/passwd", "etc_passwd"},
		{"i contain cool \xfcml\xe4uts.txt", "i_contain_cool_mluts.txt"},
		{"i contain cool ümläuts.txt", "i_contain_cool_umlauts.txt"},
		{"data.csv", "data.csv"},
		{"  spaced   out .csv ", "spaced_out_.csv"},
		{`C:\Users\me\report.csv`, "C_Users_me_report.csv"},
		{"__hidden.csv", "hidden.csv"},
		{"...", ""},
		{"日本語", ""},
		{"CON", "_CON"},
		{"nul.csv", "_nul.csv"},
		{"console.csv", "console.csv"},
		{"a$b%c.csv", "abc.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SecureFilename(tt.in))
		})
	}
}

func TestReportNames(t *testing.T) {
	html, json := ReportNames("data.csv")
	assert.Equal(t, "data.csv_report.html", html)
	assert.Equal(t, "data.csv_report.json", json)
}
