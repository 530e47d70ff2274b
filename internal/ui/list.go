package ui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/mtpsync/internal/models"
)

var _ list.Item = missingItem{}

// missingItem wraps a planned [models.RunItem] to implement [list.Item].
type missingItem struct {
	item models.RunItem
}

func (i missingItem) FilterValue() string { return i.item.Destination }
func (i missingItem) Title() string       { return i.item.Destination }
func (i missingItem) Description() string { return i.item.Source }
