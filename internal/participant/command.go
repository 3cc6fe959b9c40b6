package participant

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrQuit           = errors.New("quit")
	ErrUnknownCommand = errors.New("unknown command")
)

type commander interface {
	SelectItem(itemID string) error
	Step(n int) error
	Transpose(offset int) error
	ShiftTranspose(delta int) error
	SetScroll(isScrolling bool, speed int) error
	SetMetronome(isPlaying bool, bpm int) error
	SetTab(tab string)
	SetMaxScroll(max int)
}

// Execute runs one line of the interactive command language:
//
//	next | prev | select <id> | transpose <n> | up | down
//	scroll on|off [speed] | metronome on|off [bpm] | tab <name> | max <px> | quit
func Execute(s commander, view func() (speed, bpm int), line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "next":
		return s.Step(1)
	case "prev":
		return s.Step(-1)
	case "select":
		if len(args) != 1 {
			return fmt.Errorf("usage: select <item-id>")
		}
		return s.SelectItem(args[0])
	case "transpose":
		n, err := intArg(args, 0)
		if err != nil {
			return err
		}
		return s.Transpose(n)
	case "up":
		return s.ShiftTranspose(1)
	case "down":
		return s.ShiftTranspose(-1)
	case "scroll", "metronome":
		on, err := switchArg(args)
		if err != nil {
			return fmt.Errorf("usage: %s on|off [value]: %w", cmd, err)
		}
		speed, bpm := view()
		if cmd == "scroll" {
			if speed, err = optionalIntArg(args, 1, speed); err != nil {
				return err
			}
			return s.SetScroll(on, speed)
		}
		if bpm, err = optionalIntArg(args, 1, bpm); err != nil {
			return err
		}
		return s.SetMetronome(on, bpm)
	case "tab":
		if len(args) != 1 {
			return fmt.Errorf("usage: tab <name>")
		}
		s.SetTab(args[0])
		return nil
	case "max":
		n, err := intArg(args, 0)
		if err != nil {
			return err
		}
		s.SetMaxScroll(n)
		return nil
	case "quit", "exit":
		return ErrQuit
	}

	return fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
}

func switchArg(args []string) (bool, error) {
	if len(args) == 0 {
		return false, errors.New("missing on|off")
	}

	switch strings.ToLower(args[0]) {
	case "on":
		return true, nil
	case "off":
		return false, nil
	}

	return false, fmt.Errorf("expected on|off, got %q", args[0])
}

func intArg(args []string, i int) (int, error) {
	if len(args) <= i {
		return 0, errors.New("missing number")
	}

	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("failed to parse number: %w", err)
	}

	return n, nil
}

func optionalIntArg(args []string, i, fallback int) (int, error) {
	if len(args) <= i {
		return fallback, nil
	}
	return intArg(args, i)
}
