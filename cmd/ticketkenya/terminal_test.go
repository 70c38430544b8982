package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketkenya/internal/views"
)

func newTestTerminal(input string) (*terminal, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	ui := newTerminal(strings.NewReader(input), &out, &errOut)
	ui.noColor = true
	return ui, &out, &errOut
}

func TestConfirm(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  bool
	}{
		{"yes", "y\n", true},
		{"full word", "YES\n", true},
		{"no", "n\n", false},
		{"empty line", "\n", false},
		{"no trailing newline", "y", true},
		{"end of input", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ui, _, errOut := newTestTerminal(tc.input)
			ok, err := ui.Confirm(context.Background(), "Are you sure?", "Delete booking #1?")
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
			assert.Contains(t, errOut.String(), "[y/N]")
		})
	}
}

func TestConfirmAssumeYes(t *testing.T) {
	ui, _, errOut := newTestTerminal("")
	ui.assume = true

	ok, err := ui.Confirm(context.Background(), "Are you sure?", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, errOut.String())
}

func TestPasswordFallsBackToLine(t *testing.T) {
	ui, _, _ := newTestTerminal("secret1\nsecret1\n")

	first, err := ui.password("Password")
	require.NoError(t, err)
	second, err := ui.password("Confirm password")
	require.NoError(t, err)
	assert.Equal(t, "secret1", first)
	assert.Equal(t, first, second)
}

func TestTable(t *testing.T) {
	ui, out, _ := newTestTerminal("")
	ui.table([]string{"ID", "TITLE"}, [][]string{
		{"1", "Blankets & Wine"},
		{"12", "Koroga"},
	})

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "TITLE")
	assert.Contains(t, lines[1], "Blankets & Wine")
	assert.Equal(t, strings.Index(lines[1], "Blankets"), strings.Index(lines[2], "Koroga"))
}

func TestTableEmpty(t *testing.T) {
	ui, out, _ := newTestTerminal("")
	ui.table([]string{"ID"}, nil)
	assert.Contains(t, out.String(), "Nothing to show.")
}

func TestToastsGoToStderr(t *testing.T) {
	ui, out, errOut := newTestTerminal("")
	ui.Success("Login successful!", "Welcome back.")

	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Login successful! Welcome back.")
}

func TestID64(t *testing.T) {
	id, err := id64("#42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, err := id64(bad)
		assert.Error(t, err, bad)
	}
}

func TestMergeEventFormKeepsUnsetFields(t *testing.T) {
	var in views.EventForm
	f := pflag.NewFlagSet("edit", pflag.ContinueOnError)
	eventFormFlags(f, &in)
	require.NoError(t, f.Parse([]string{"--price", "2500", "--title", "Koroga Festival"}))

	base := views.EventForm{Title: "Koroga", Category: "Music", VenueID: 3, Date: "2026-12-05", TicketPrice: 2000, TicketsTotal: 500}
	got := mergeEventForm(f, base, in)

	assert.Equal(t, "Koroga Festival", got.Title)
	assert.Equal(t, 2500.0, got.TicketPrice)
	assert.Equal(t, "Music", got.Category)
	assert.Equal(t, int64(3), got.VenueID)
	assert.Equal(t, 500, got.TicketsTotal)
}
