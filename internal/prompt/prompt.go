// Package prompt collects a pre-snap situation interactively on a terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"blitzwatch/internal/common"
	"blitzwatch/internal/features"
)

// ErrAborted is returned when input ends before a valid answer is given.
var ErrAborted = errors.New("input ended before a valid answer")

// Prompter asks questions on out and reads answers line by line from in.
// Invalid answers are reported and the question is asked again.
type Prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewScanner(in), out: out}
}

func (p *Prompter) readLine(question string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", question)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", ErrAborted
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// Int asks for an integer in [lo, hi].
func (p *Prompter) Int(question string, lo, hi int) (int, error) {
	for {
		line, err := p.readLine(question)
		if err != nil {
			return 0, err
		}
		v, err := strconv.Atoi(line)
		if err != nil {
			fmt.Fprintln(p.out, " → Invalid integer. Try again.")
			continue
		}
		if v < lo || v > hi {
			fmt.Fprintf(p.out, " → Please enter an integer between %d and %d.\n", lo, hi)
			continue
		}
		return v, nil
	}
}

// Choice asks for one of options, matched case-insensitively, and returns
// the option as listed.
func (p *Prompter) Choice(question string, options ...string) (string, error) {
	list := strings.Join(options, "/")
	for {
		line, err := p.readLine(fmt.Sprintf("%s (%s)", question, list))
		if err != nil {
			return "", err
		}
		for _, o := range options {
			if strings.EqualFold(line, o) {
				return o, nil
			}
		}
		fmt.Fprintf(p.out, " → Choose one of: %s\n", list)
	}
}

func (p *Prompter) yesNo(question string) (bool, error) {
	answer, err := p.Choice(question, "yes", "no")
	return answer == "yes", err
}

// CollectPlay asks for every field of a play in order.
func (p *Prompter) CollectPlay() (features.Play, error) {
	var play features.Play
	var minLeft, secLeft int

	ints := []struct {
		question string
		lo, hi   int
		dst      *int
	}{
		{"Down (1-4)", 1, 4, &play.Down},
		{"Yards to Go (1-99)", 1, 99, &play.YdsToGo},
		{"Yardline (yards from opponent end zone, 1-99)", 1, 99, &play.YardLine100},
		{"Quarter (1-5, 5 is overtime)", 1, 5, &play.Qtr},
		{"Minutes left in Quarter (0-15)", 0, 15, &minLeft},
		{"Seconds left in Quarter (0-59)", 0, 59, &secLeft},
		{"Your team's current score", 0, 100, &play.PosteamScore},
		{"Opponent's current score", 0, 100, &play.DefteamScore},
	}
	for _, q := range ints {
		v, err := p.Int(q.question, q.lo, q.hi)
		if err != nil {
			return features.Play{}, err
		}
		*q.dst = v
	}
	play.GameSecondsRemaining = features.GameSecondsRemaining(minLeft, secLeft)

	var err error
	if play.PassLocation, err = p.Choice("Pass Location", "left", "middle", "right"); err != nil {
		return features.Play{}, err
	}
	if play.PassLength, err = p.Choice("Pass Length", "short", "deep", "none"); err != nil {
		return features.Play{}, err
	}
	if play.Shotgun, err = p.yesNo("Shotgun formation?"); err != nil {
		return features.Play{}, err
	}
	if play.NoHuddle, err = p.yesNo("No-Huddle offense?"); err != nil {
		return features.Play{}, err
	}
	return play, nil
}

// PrintResult writes the probability as a percentage and the recommendation
// for threshold.
func (p *Prompter) PrintResult(proba, threshold float64) {
	fmt.Fprintln(p.out, "\n--- Prediction Result ---")
	fmt.Fprintf(p.out, "Blitz Probability: %.2f%%\n", proba*100)
	if proba > threshold {
		fmt.Fprintf(p.out, "→ Model suggests a %s.\n", common.RecommendBlitz)
	} else {
		fmt.Fprintf(p.out, "→ Model suggests %s.\n", common.RecommendNoBlitz)
	}
	fmt.Fprintln(p.out, "--------------------------")
}
