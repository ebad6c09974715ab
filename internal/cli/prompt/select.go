package prompt

import (
	"github.com/manifoldco/promptui"
)

// SelectOption represents an item in a selection list.
type SelectOption struct {
	Label       string
	Value       string
	Description string
}

func selectTemplates(withDetails bool) *promptui.SelectTemplates {
	t := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label | white }}",
		Selected: "* {{ .Label | green }}",
	}
	if withDetails {
		t.Details = `
{{ "Description:" | faint }}	{{ .Description }}`
	}
	return t
}

// Select prompts the user to pick one option and returns its Value. The
// cursor starts on the option whose Value equals current.
func Select(label string, options []SelectOption, current string) (string, error) {
	p := promptui.Select{
		Label:     label,
		Items:     options,
		Templates: selectTemplates(len(options) > 0 && options[0].Description != ""),
		Size:      10,
		CursorPos: indexOf(options, current),
	}

	i, _, err := p.Run()
	if err != nil {
		return "", wrapError(err)
	}
	return options[i].Value, nil
}

func indexOf(options []SelectOption, value string) int {
	for i, o := range options {
		if o.Value == value {
			return i
		}
	}
	return 0
}
