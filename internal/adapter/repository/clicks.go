// Package repository holds helpers shared by the link store backends.
package repository

import (
	"bytes"
	"sort"

	"github.com/google/uuid"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

// LinkClicks is the part of a click batch that belongs to one link.
type LinkClicks struct {
	LinkID uuid.UUID
	Events []entity.ClickEvent
}

// GroupClicks splits a batch by link. Groups are sorted by link id so that
// concurrent transactions lock rows in the same order.
func GroupClicks(events []entity.ClickEvent) []LinkClicks {
	idx := make(map[uuid.UUID]int)
	var groups []LinkClicks

	for _, ev := range events {
		i, ok := idx[ev.LinkID]
		if !ok {
			i = len(groups)
			idx[ev.LinkID] = i
			groups = append(groups, LinkClicks{LinkID: ev.LinkID})
		}
		groups[i].Events = append(groups[i].Events, ev)
	}

	sort.Slice(groups, func(i, j int) bool {
		return bytes.Compare(groups[i].LinkID[:], groups[j].LinkID[:]) < 0
	})

	return groups
}
