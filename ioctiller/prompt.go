package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/ioctiller/ioctiller/shared"
)

// ErrTooFewSelected is returned when fewer than two IOCTLs are selected for
// fuzz-many.
var ErrTooFewSelected = errors.New("At least 2 IOCTLs need to be selected")

const minFuzzManySelection = 2

// prompter asks questions on a terminal.
type prompter struct {
	in  *bufio.Reader
	out io.Writer

	// isTerminal reports whether in is attached to a terminal.
	isTerminal func() bool
}

func newPrompter(in *os.File, out io.Writer) *prompter {
	return &prompter{
		in:  bufio.NewReader(in),
		out: out,
		isTerminal: func() bool {
			return term.IsTerminal(int(in.Fd()))
		},
	}
}

func (p *prompter) interactive() bool {
	return p.isTerminal != nil && p.isTerminal()
}

func (p *prompter) ask(question string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", question)

	line, err := p.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", fmt.Errorf("Failed to read answer: %w", err)
	}

	return strings.TrimSpace(line), nil
}

func (p *prompter) printItems(items []string) {
	for i, item := range items {
		fmt.Fprintf(p.out, "[%d]: %s\n", i, item)
	}
}

// selectIndex asks for one of items and returns its index.
func (p *prompter) selectIndex(question string, items []string) (int, error) {
	p.printItems(items)

	answer, err := p.ask(question)
	if err != nil {
		return 0, err
	}

	i, err := strconv.Atoi(answer)
	if err != nil || i < 0 || i >= len(items) {
		return 0, fmt.Errorf("Invalid selection %q", answer)
	}

	return i, nil
}

// selectIndexes asks for a comma separated list of items.
func (p *prompter) selectIndexes(question string, items []string) ([]int, error) {
	p.printItems(items)

	answer, err := p.ask(question + " (comma separated)")
	if err != nil {
		return nil, err
	}

	var indexes []int

	for _, field := range strings.Split(answer, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}

		i, err := strconv.Atoi(field)
		if err != nil || i < 0 || i >= len(items) {
			return nil, fmt.Errorf("Invalid selection %q", field)
		}

		if !slices.Contains(indexes, i) {
			indexes = append(indexes, i)
		}
	}

	return indexes, nil
}

// askInt asks for a positive integer.
func (p *prompter) askInt(question string) (int, error) {
	answer, err := p.ask(question)
	if err != nil {
		return 0, err
	}

	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("Invalid number %q, it must be at least 1", answer)
	}

	return n, nil
}

func (c *cmdGlobal) requests() ([]shared.Request, []string, error) {
	reqs, err := c.definition.Requests()
	if err != nil {
		return nil, nil, err
	}

	names := make([]string, 0, len(reqs))
	for _, req := range reqs {
		names = append(names, fmt.Sprintf("%s(0x%X)", req.Name(), req.Code()))
	}

	return reqs, names, nil
}

func findRequest(reqs []shared.Request, name string) (shared.Request, error) {
	for _, req := range reqs {
		if req.Name() == name {
			return req, nil
		}
	}

	return shared.Request{}, fmt.Errorf("Unknown IOCTL %q", name)
}

// selectOne returns the named request, or asks for one if name is empty.
func (c *cmdGlobal) selectOne(name string, question string) (shared.Request, error) {
	reqs, names, err := c.requests()
	if err != nil {
		return shared.Request{}, err
	}

	if name != "" {
		return findRequest(reqs, name)
	}

	if !c.prompt.interactive() {
		return shared.Request{}, errors.New("--ioctl is required when standard input is not a terminal")
	}

	i, err := c.prompt.selectIndex(question, names)
	if err != nil {
		return shared.Request{}, err
	}

	return reqs[i], nil
}

// selectMany returns the named requests, or asks for them if none are given.
// At least two requests must be selected.
func (c *cmdGlobal) selectMany(names []string, question string) ([]shared.Request, error) {
	reqs, labels, err := c.requests()
	if err != nil {
		return nil, err
	}

	var selected []shared.Request

	if len(names) > 0 {
		seen := map[string]bool{}

		for _, name := range names {
			if seen[name] {
				continue
			}

			seen[name] = true

			req, err := findRequest(reqs, name)
			if err != nil {
				return nil, err
			}

			selected = append(selected, req)
		}
	} else {
		if !c.prompt.interactive() {
			return nil, errors.New("--ioctl is required when standard input is not a terminal")
		}

		indexes, err := c.prompt.selectIndexes(question, labels)
		if err != nil {
			return nil, err
		}

		for _, i := range indexes {
			selected = append(selected, reqs[i])
		}
	}

	if len(selected) < minFuzzManySelection {
		return nil, ErrTooFewSelected
	}

	return selected, nil
}

func (c *cmdGlobal) selectWorkers() (int, error) {
	if !c.prompt.interactive() {
		return 0, errors.New("--workers is required when standard input is not a terminal")
	}

	return c.prompt.askInt("Please enter the number of workers")
}
