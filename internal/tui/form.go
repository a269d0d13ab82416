package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fjod/go_storefront/internal/domain"
)

type formField struct {
	key   string
	label string
	value string
}

type checkoutForm struct {
	fields []formField
	focus  int
	errors map[string]string
}

func newCheckoutForm() *checkoutForm {
	return &checkoutForm{
		fields: []formField{
			{key: "customer_name", label: "Name"},
			{key: "customer_phone", label: "Phone"},
			{key: "customer_email", label: "Email (optional)"},
			{key: "customer_address", label: "Address (optional)"},
			{key: "notes", label: "Notes (optional)"},
		},
	}
}

func (f *checkoutForm) customer() domain.Customer {
	return domain.Customer{
		Name:    f.fields[0].value,
		Phone:   f.fields[1].value,
		Email:   f.fields[2].value,
		Address: f.fields[3].value,
		Notes:   f.fields[4].value,
	}
}

func (f *checkoutForm) handleKey(msg tea.KeyMsg) {
	field := &f.fields[f.focus]
	switch msg.Type {
	case tea.KeyTab, tea.KeyDown:
		f.focus = (f.focus + 1) % len(f.fields)
	case tea.KeyShiftTab, tea.KeyUp:
		f.focus = (f.focus + len(f.fields) - 1) % len(f.fields)
	case tea.KeyBackspace:
		if r := []rune(field.value); len(r) > 0 {
			field.value = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		field.value += " "
	case tea.KeyRunes:
		field.value += string(msg.Runes)
	}
}

func (f *checkoutForm) view(b *strings.Builder) {
	fmt.Fprintln(b, "Checkout")
	fmt.Fprintln(b, "")
	for i, field := range f.fields {
		marker := " "
		cursor := ""
		if i == f.focus {
			marker = ">"
			cursor = "_"
		}
		fmt.Fprintf(b, " %s %-20s %s%s\n", marker, field.label+":", field.value, cursor)
		if msg, ok := f.errors[field.key]; ok {
			fmt.Fprintf(b, "     ! %s\n", msg)
		}
	}
	if msg, ok := f.errors["items"]; ok {
		fmt.Fprintf(b, "   ! %s\n", msg)
	}
}
