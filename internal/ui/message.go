package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mtpsync/internal/models"
	"github.com/desertthunder/mtpsync/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgDiffComputed MsgKind = iota
	MsgProgressUpdate
	MsgRunComplete
)

type diffComputed struct {
	desired models.DesiredSet
	diff    *tasks.DiffResult
	err     error
}

type runComplete struct {
	result *tasks.RunResult
	err    error
}

// diffComputedMsg is the constructor for [MsgDiffComputed]
func diffComputedMsg(desired models.DesiredSet, diff *tasks.DiffResult, err error) Msg {
	return Msg{kind: MsgDiffComputed, data: diffComputed{desired, diff, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// runCompleteMsg is the constructor for [MsgRunComplete]
func runCompleteMsg(result *tasks.RunResult, err error) Msg {
	return Msg{kind: MsgRunComplete, data: runComplete{result, err}}
}
