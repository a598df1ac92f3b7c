package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`  _                       _`, "#818cf8"},
	{` | |_ __ _ _ __  ___  ___| |_ _ __ _   _`, "#a78bfa"},
	{` | __/ _' | '_ \/ __|/ _ \ __| '__| | | |`, "#c084fc"},
	{` | || (_| | |_) \__ \  __/ |_| |  | |_| |`, "#e879f9"},
	{`  \__\__,_| .__/|___/\___|\__|_|   \__, |`, "#f472b6"},
	{`          |_|                      |___/`, "#fb7185"},
}

// PrintBanner writes the tapestry banner, colored when w supports it.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	p := out.EnvColorProfile()
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
