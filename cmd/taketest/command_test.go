package main

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    command
		wantErr bool
	}{
		{line: "2", want: command{kind: cmdOption, n: 2}},
		{line: " 10 ", want: command{kind: cmdOption, n: 10}},
		{line: "0", wantErr: true},
		{line: "t Water moves across a membrane", want: command{kind: cmdText, text: "Water moves across a membrane"}},
		{line: "t", want: command{kind: cmdText, text: ""}},
		{line: "c", want: command{kind: cmdClear}},
		{line: "N", want: command{kind: cmdNext}},
		{line: "prev", want: command{kind: cmdPrevious}},
		{line: "g 3", want: command{kind: cmdGoTo, n: 3}},
		{line: "g", wantErr: true},
		{line: "g x", wantErr: true},
		{line: "s", want: command{kind: cmdSubmit}},
		{line: "q", want: command{kind: cmdQuit}},
		{line: "?", want: command{kind: cmdHelp}},
		{line: "", want: command{kind: cmdRedraw}},
		{line: "dance", wantErr: true},
	}

	for _, tc := range tests {
		got, err := parseCommand(tc.line)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseCommand(%q) = %+v, want error", tc.line, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseCommand(%q): %v", tc.line, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseCommand(%q) = %+v, want %+v", tc.line, got, tc.want)
		}
	}
}
