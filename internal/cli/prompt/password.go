package prompt

import (
	"github.com/manifoldco/promptui"
)

// Password prompts for a secret with masked input.
func Password(label string) (string, error) {
	p := promptui.Prompt{
		Label:    label,
		Mask:     '*',
		Validate: validateRequired,
	}

	result, err := p.Run()
	return result, wrapError(err)
}
