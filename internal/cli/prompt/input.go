package prompt

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"

	"github.com/marmos91/ofio/internal/bytesize"
)

// Input prompts for text input.
func Input(label, defaultValue string) (string, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: defaultValue,
	}

	result, err := p.Run()
	return result, wrapError(err)
}

// InputRequired prompts until a non-empty value is given.
func InputRequired(label string) (string, error) {
	p := promptui.Prompt{
		Label:    label,
		Validate: validateRequired,
	}

	result, err := p.Run()
	return result, wrapError(err)
}

// InputOptional prompts for a value that may be left empty.
func InputOptional(label string) (string, error) {
	return Input(label+" (optional)", "")
}

// InputIntRange prompts for an integer in [lo, hi].
func InputIntRange(label string, defaultValue, lo, hi int) (int, error) {
	p := promptui.Prompt{
		Label:    fmt.Sprintf("%s (%d-%d)", label, lo, hi),
		Default:  strconv.Itoa(defaultValue),
		Validate: validateIntRange(lo, hi),
	}

	result, err := p.Run()
	if err != nil {
		return 0, wrapError(err)
	}
	return strconv.Atoi(result)
}

// InputSize prompts for a byte size such as "64KiB" or "1MB".
func InputSize(label string, defaultValue bytesize.ByteSize) (bytesize.ByteSize, error) {
	p := promptui.Prompt{
		Label:    label,
		Default:  defaultValue.String(),
		Validate: validateSize,
	}

	result, err := p.Run()
	if err != nil {
		return 0, wrapError(err)
	}
	return bytesize.ParseByteSize(result)
}

func validateRequired(input string) error {
	if input == "" {
		return fmt.Errorf("a value is required")
	}
	return nil
}

func validateIntRange(lo, hi int) func(string) error {
	return func(input string) error {
		v, err := strconv.Atoi(input)
		if err != nil {
			return fmt.Errorf("must be a valid integer")
		}
		if v < lo || v > hi {
			return fmt.Errorf("must be between %d and %d", lo, hi)
		}
		return nil
	}
}

func validateSize(input string) error {
	size, err := bytesize.ParseByteSize(input)
	if err != nil {
		return err
	}
	if size == 0 {
		return fmt.Errorf("size must be positive")
	}
	return nil
}
