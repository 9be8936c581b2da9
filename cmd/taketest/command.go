package main

import (
	"errors"
	"strconv"
	"strings"
)

type commandKind int

const (
	cmdOption commandKind = iota
	cmdText
	cmdClear
	cmdNext
	cmdPrevious
	cmdGoTo
	cmdSubmit
	cmdQuit
	cmdHelp
	cmdRedraw
)

// command is one line typed by the student. n is 1-based as typed.
type command struct {
	kind commandKind
	n    int
	text string
}

var errUnknownCommand = errors.New("unknown command, type h for help")

func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return command{kind: cmdRedraw}, nil
	}

	if n, err := strconv.Atoi(line); err == nil {
		if n < 1 {
			return command{}, errors.New("options are numbered from 1")
		}
		return command{kind: cmdOption, n: n}, nil
	}

	verb, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(verb) {
	case "t", "text":
		return command{kind: cmdText, text: rest}, nil
	case "c", "clear":
		return command{kind: cmdClear}, nil
	case "n", "next":
		return command{kind: cmdNext}, nil
	case "p", "prev", "previous":
		return command{kind: cmdPrevious}, nil
	case "g", "goto":
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			return command{}, errors.New("usage: g <question number>")
		}
		return command{kind: cmdGoTo, n: n}, nil
	case "s", "submit":
		return command{kind: cmdSubmit}, nil
	case "q", "quit":
		return command{kind: cmdQuit}, nil
	case "h", "help", "?":
		return command{kind: cmdHelp}, nil
	}
	return command{}, errUnknownCommand
}

const helpText = `Commands:
  <number>     choose an option (multiple choice)
  t <text>     write your answer (paragraph questions)
  c            clear the answer to this question
  n / p        next / previous question
  g <number>   go to a question
  s            submit the test
  q            quit without submitting
  <enter>      redraw`
