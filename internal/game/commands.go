package game

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/pixil98/go-mudcore/internal/display"
	"github.com/pixil98/go-mudcore/internal/entity"
)

var directions = []string{"north", "east", "south", "west", "up", "down"}

var directionAliases = map[string]string{
	"n": "north",
	"e": "east",
	"s": "south",
	"w": "west",
	"u": "up",
	"d": "down",
}

// Command returns the handler a player invokes by typing name.
func (c *Character) Command(name string) (entity.CommandFunc, bool) {
	if dir, ok := directionAliases[name]; ok {
		name = dir
	}
	if slices.Contains(directions, name) {
		return func(ctx context.Context, m *entity.Manager, _ []string) (string, error) {
			return c.move(ctx, m, name)
		}, true
	}

	switch name {
	case "look", "l":
		return c.look, true
	case "go":
		return func(ctx context.Context, m *entity.Manager, args []string) (string, error) {
			if len(args) == 0 {
				return "", NewUserError("Go where?")
			}
			dir := strings.ToLower(args[0])
			if alias, ok := directionAliases[dir]; ok {
				dir = alias
			}
			return c.move(ctx, m, dir)
		}, true
	case "say":
		return c.say, true
	case "title":
		return c.title, true
	case "score":
		return c.score, true
	case "inventory", "i":
		return c.inventory, true
	case "get":
		return c.get, true
	case "drop":
		return c.drop, true
	case "who":
		return c.who, true
	case "save":
		return c.save, true
	}
	return nil, false
}

// room returns the room holding the character.
func (c *Character) room(m *entity.Manager) (*entity.Handle, *Room, error) {
	h := m.Lookup(c.ParentID())
	r, ok := entity.TryAs[*Room](h)
	if !ok {
		return nil, nil, ErrNoLocation
	}
	return h, r, nil
}

func (c *Character) look(_ context.Context, m *entity.Manager, _ []string) (string, error) {
	_, r, err := c.room(m)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(r.Title)
	sb.WriteString("\n")
	if r.Description != "" {
		sb.WriteString(display.Wrap(r.Description))
		sb.WriteString("\n")
	}

	var exits []string
	for _, dir := range directions {
		if _, ok := r.Exit(dir); ok {
			exits = append(exits, dir)
		}
	}
	if len(exits) == 0 {
		sb.WriteString("[Exits: none]")
	} else {
		fmt.Fprintf(&sb, "[Exits: %s]", strings.Join(exits, " "))
	}

	for _, id := range r.ChildIDs() {
		if id == c.ID() {
			continue
		}
		h := m.Lookup(id)
		if other, ok := entity.TryAs[*Character](h); ok {
			fmt.Fprintf(&sb, "\n%s is here.", other.DisplayName())
		} else if item, ok := entity.TryAs[*Item](h); ok {
			fmt.Fprintf(&sb, "\n%s lies here.", display.Capitalize(item.ItemName))
		}
	}

	return sb.String(), nil
}

func (c *Character) move(ctx context.Context, m *entity.Manager, dir string) (string, error) {
	from, r, err := c.room(m)
	if err != nil {
		return "", err
	}

	ref, ok := r.Exit(dir)
	if !ok {
		return "", NewUserError("Alas, you cannot go that way.")
	}

	to, err := m.Load(ctx, ref.ID)
	if err != nil {
		return "", fmt.Errorf("loading exit %s of %s: %w", dir, from.ID(), err)
	}
	if !entity.Is[*Room](to) {
		return "", fmt.Errorf("exit %s of %s leads to %s, which is not a room", dir, from.ID(), to)
	}

	if err := m.Insert(ctx, to, m.Lookup(c.ID())); err != nil {
		return "", fmt.Errorf("moving %s: %w", c.ID(), err)
	}

	c.tellRoom(m, from, fmt.Sprintf("%s leaves %s.", c.CharName, dir))
	c.tellRoom(m, to, fmt.Sprintf("%s has arrived.", c.CharName))

	return c.look(ctx, m, nil)
}

// Announce sends text to every other character in the room the character is
// in.
func (c *Character) Announce(m *entity.Manager, text string) {
	if room, _, err := c.room(m); err == nil {
		c.tellRoom(m, room, text)
	}
}

// tellRoom sends text to every other character in room.
func (c *Character) tellRoom(m *entity.Manager, room *entity.Handle, text string) {
	for _, h := range m.Children(room) {
		if h.ID() == c.ID() {
			continue
		}
		if other, ok := entity.TryAs[*Character](h); ok {
			_ = other.Send(text)
		}
	}
}

func (c *Character) say(_ context.Context, m *entity.Manager, args []string) (string, error) {
	if len(args) == 0 {
		return "", NewUserError("Say what?")
	}
	msg := strings.Join(args, " ")

	room, _, err := c.room(m)
	if err != nil {
		return "", err
	}

	c.tellRoom(m, room, fmt.Sprintf("%s says, '%s'", c.CharName, msg))
	return fmt.Sprintf("You say, '%s'", msg), nil
}

func (c *Character) title(_ context.Context, _ *entity.Manager, args []string) (string, error) {
	c.Title = strings.Join(args, " ")
	if c.Title == "" {
		return "Title cleared.", nil
	}
	return fmt.Sprintf("Title set to: %s", c.Title), nil
}

func (c *Character) score(_ context.Context, _ *entity.Manager, _ []string) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", c.DisplayName())
	if !c.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, "Created: %s\n", c.CreatedAt.Format("2006-01-02"))
	}

	stats := make([]string, 0, len(c.Stats))
	for k := range c.Stats {
		stats = append(stats, k)
	}
	slices.Sort(stats)
	for _, k := range stats {
		fmt.Fprintf(&sb, "%-10s %d\n", display.Capitalize(k)+":", c.Stats[k])
	}

	flags := c.Flags.Values()
	slices.Sort(flags)
	if len(flags) > 0 {
		fmt.Fprintf(&sb, "Flags: %s\n", strings.Join(flags, ", "))
	}

	return strings.TrimRight(sb.String(), "\n"), nil
}

func (c *Character) inventory(_ context.Context, m *entity.Manager, _ []string) (string, error) {
	var lines []string
	for _, h := range m.Children(m.Lookup(c.ID())) {
		if item, ok := entity.TryAs[*Item](h); ok {
			lines = append(lines, "  "+item.ItemName)
		}
	}
	if len(lines) == 0 {
		return "You are carrying nothing.", nil
	}
	return "You are carrying:\n" + strings.Join(lines, "\n"), nil
}

// findItem returns the first loaded item in container whose name contains
// the keyword.
func findItem(m *entity.Manager, container *entity.Handle, keyword string) (*entity.Handle, *Item) {
	keyword = strings.ToLower(keyword)
	for _, h := range m.Children(container) {
		item, ok := entity.TryAs[*Item](h)
		if ok && strings.Contains(strings.ToLower(item.ItemName), keyword) {
			return h, item
		}
	}
	return nil, nil
}

func (c *Character) get(ctx context.Context, m *entity.Manager, args []string) (string, error) {
	if len(args) == 0 {
		return "", NewUserError("Get what?")
	}
	room, _, err := c.room(m)
	if err != nil {
		return "", err
	}

	h, item := findItem(m, room, strings.Join(args, " "))
	if item == nil {
		return "", NewUserError("You don't see that here.")
	}
	if err := m.Insert(ctx, m.Lookup(c.ID()), h); err != nil {
		return "", fmt.Errorf("picking up %s: %w", h.ID(), err)
	}

	name := item.ItemName
	c.tellRoom(m, room, fmt.Sprintf("%s gets %s.", c.CharName, name))
	return fmt.Sprintf("You get %s.", name), nil
}

func (c *Character) drop(ctx context.Context, m *entity.Manager, args []string) (string, error) {
	if len(args) == 0 {
		return "", NewUserError("Drop what?")
	}
	room, _, err := c.room(m)
	if err != nil {
		return "", err
	}

	h, item := findItem(m, m.Lookup(c.ID()), strings.Join(args, " "))
	if item == nil {
		return "", NewUserError("You aren't carrying that.")
	}
	if err := m.Insert(ctx, room, h); err != nil {
		return "", fmt.Errorf("dropping %s: %w", h.ID(), err)
	}

	name := item.ItemName
	c.tellRoom(m, room, fmt.Sprintf("%s drops %s.", c.CharName, name))
	return fmt.Sprintf("You drop %s.", name), nil
}

func (c *Character) who(_ context.Context, m *entity.Manager, _ []string) (string, error) {
	var online []string
	for _, id := range m.IDs() {
		if other, ok := entity.TryAs[*Character](m.Lookup(id)); ok && other.Online() {
			online = append(online, other.DisplayName())
		}
	}
	slices.Sort(online)

	var sb strings.Builder
	sb.WriteString("Players online:")
	for _, name := range online {
		sb.WriteString("\n  " + name)
	}
	fmt.Fprintf(&sb, "\n%d total.", len(online))
	return sb.String(), nil
}

func (c *Character) save(ctx context.Context, m *entity.Manager, _ []string) (string, error) {
	if err := m.Save(ctx, m.Lookup(c.ID())); err != nil {
		return "", fmt.Errorf("saving character: %w", err)
	}
	return "Character saved.", nil
}
