package crafting

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/gravitas-games/storagehub/internal/events"
	"github.com/gravitas-games/storagehub/internal/item"
	"github.com/gravitas-games/storagehub/internal/logger"
	"github.com/gravitas-games/storagehub/internal/recipe"
	"github.com/gravitas-games/storagehub/internal/storage"
)

// Draw is one planned take from a specific slot.
type Draw struct {
	Source int
	Slot   int
	ItemID int
	Count  int
}

// Outcome describes a completed craft.
type Outcome struct {
	TxID     string
	Recipe   *recipe.Info
	Count    int
	Consumed []item.Snapshot
	Produced item.Snapshot
}

// transaction is the log of takes applied during a commit.
type transaction struct {
	id    string
	taken []item.Snapshot
}

// Executor performs single recipe invocations with a two-phase commit.
// It is the only component that mutates storage on behalf of crafting.
type Executor struct {
	provider storage.Provider
	bus      events.Bus
	log      logger.Logger
	newID    func() string
}

// NewExecutor creates an executor. bus may be nil.
func NewExecutor(provider storage.Provider, bus events.Bus, log logger.Logger) *Executor {
	return &Executor{
		provider: provider,
		bus:      events.OrNull(bus),
		log:      logger.OrNop(log),
		newID:    uuid.NewString,
	}
}

type slotKey struct{ source, slot int }

// allocationOrder returns the ingredients in the order materials are
// assigned to them: exact items first, then groups. A group takes its
// members in ValidItemIDs order. Both PlanDraws and the plan simulation
// follow it, so a simulated plan draws the items execution will draw.
func allocationOrder(ings []recipe.Ingredient) []recipe.Ingredient {
	out := make([]recipe.Ingredient, 0, len(ings))
	for _, ing := range ings {
		if !ing.IsGroup {
			out = append(out, ing)
		}
	}
	for _, ing := range ings {
		if ing.IsGroup {
			out = append(out, ing)
		}
	}
	return out
}

// PlanDraws records which slots would satisfy count crafts of r without
// mutating anything. Each slot is allocated at most once across all
// ingredients, so overlapping group ingredients cannot double-draw a stack.
func (e *Executor) PlanDraws(r *recipe.Info, count int) ([]Draw, error) {
	if err := validate(r, count); err != nil {
		return nil, err
	}
	snaps := e.provider.AccessibleItems()
	remaining := make(map[slotKey]int, len(snaps))
	for _, s := range snaps {
		remaining[slotKey{s.Source, s.Slot}] = s.Stack
	}

	var draws []Draw
	for _, ing := range allocationOrder(r.Ingredients) {
		need, ok := item.MulQuantity(ing.RequiredStack, count)
		if !ok {
			return nil, fmt.Errorf("%w: %d x %s for %d crafts", ErrQuantityOverflow, ing.RequiredStack, ing.Name, count)
		}
		for _, id := range ing.Members() {
			for _, s := range snaps {
				if need == 0 {
					break
				}
				if s.IsEmpty() || s.ItemID != id {
					continue
				}
				k := slotKey{s.Source, s.Slot}
				avail := remaining[k]
				if avail <= 0 {
					continue
				}
				n := min(avail, need)
				draws = append(draws, Draw{Source: s.Source, Slot: s.Slot, ItemID: s.ItemID, Count: n})
				remaining[k] -= n
				need -= n
			}
		}
		if need > 0 {
			return nil, fmt.Errorf("%w: %s short by %d", ErrInsufficientMaterials, ingredientName(ing), need)
		}
	}
	return draws, nil
}

func validate(r *recipe.Info, count int) error {
	if r == nil {
		return fmt.Errorf("%w: nil recipe", ErrInvalidRecipe)
	}
	if r.OutputItemID <= 0 || r.OutputStack <= 0 {
		return fmt.Errorf("%w: %s has no output", ErrInvalidRecipe, r.Name())
	}
	if len(r.Ingredients) == 0 {
		return fmt.Errorf("%w: %s has no ingredients", ErrInvalidRecipe, r.Name())
	}
	if count <= 0 {
		return fmt.Errorf("%w: craft count %d", ErrInvalidRecipe, count)
	}
	if _, ok := item.MulQuantity(r.OutputStack, count); !ok {
		return fmt.Errorf("%w: %d crafts of %s", ErrQuantityOverflow, count, r.Name())
	}
	return nil
}

func ingredientName(ing recipe.Ingredient) string {
	if ing.Name != "" {
		return ing.Name
	}
	return fmt.Sprintf("item %d", ing.ItemID)
}

// ExecuteCraft crafts count invocations of r. Materials are drawn from the
// accessible pool; the output carries no prefix. With directToInventory the
// output goes into the inventory, or into the pool when the inventory cannot
// hold all of it; otherwise it is given to the player. Any failure after the
// first take restores what was consumed.
func (e *Executor) ExecuteCraft(r *recipe.Info, count int, directToInventory bool) (*Outcome, error) {
	draws, err := e.PlanDraws(r, count)
	if err != nil {
		e.publishFailure("", r, count, err)
		return nil, err
	}

	tx := &transaction{id: e.newID()}
	for _, d := range draws {
		s, ok := e.provider.TakeItem(d.Source, d.Slot, d.Count)
		if ok {
			tx.taken = append(tx.taken, s)
		}
		if !ok || s.ItemID != d.ItemID || s.Stack != d.Count {
			e.log.Warnf("craft %s: take of %d x item %d from %s slot %d failed, rolling back",
				tx.id, d.Count, d.ItemID, item.SourceName(d.Source), d.Slot)
			e.rollback(tx)
			err := fmt.Errorf("%w: %s slot %d", ErrTakeFailed, item.SourceName(d.Source), d.Slot)
			e.publishFailure(tx.id, r, count, err)
			return nil, err
		}
	}

	total, _ := item.MulQuantity(r.OutputStack, count)
	output := item.Snapshot{
		ItemID: r.OutputItemID,
		Stack:  total,
		Name:   r.OutputName,
		Source: item.SourceInventory,
		Slot:   -1,
	}
	var placed bool
	if directToInventory {
		placed = e.provider.PlaceInInventory(output) || e.depositAll(tx.id, output)
	} else {
		placed = e.provider.GiveToPlayer(output)
	}
	if !placed {
		e.log.Warnf("craft %s: could not place %d x %s, restoring materials", tx.id, total, r.Name())
		e.rollback(tx)
		err := fmt.Errorf("%w: %d x %s", ErrOutputPlacement, total, r.Name())
		e.publishFailure(tx.id, r, count, err)
		return nil, err
	}

	e.log.Debugf("craft %s: %d x %s from %d takes", tx.id, total, r.Name(), len(tx.taken))
	e.bus.Publish(events.Event{
		Type:   events.CraftCompleted,
		TxID:   tx.id,
		Recipe: r.Index,
		ItemID: r.OutputItemID,
		Count:  total,
	})
	return &Outcome{TxID: tx.id, Recipe: r, Count: count, Consumed: tx.taken, Produced: output}, nil
}

// depositAll stores all of s in the pool, or nothing when the pool lacks room.
func (e *Executor) depositAll(txID string, s item.Snapshot) bool {
	if e.provider.Room(s) < s.Stack {
		return false
	}
	n, id := e.provider.DepositItem(s)
	if rem := s.Stack - n; rem > 0 {
		e.log.Warnf("craft %s: pool took %d of %d x item %d, giving the rest to the player", txID, n, s.Stack, s.ItemID)
		if n == 0 {
			return e.provider.GiveToPlayer(s)
		}
		if !e.provider.GiveToPlayer(s.WithStack(rem)) {
			// part of the output already sits in the pool; the materials stay spent
			e.log.Criticalf("craft %s: LOST %d x item %d of crafted output", txID, rem, s.ItemID)
		}
	}
	e.log.Debugf("craft %s: inventory full, %d x item %d went to %s", txID, s.Stack, s.ItemID, item.SourceName(id))
	return true
}

// rollback returns every logged take, newest first. Each stack tries its
// original slot, then the pool, then the player. It returns the number of
// units that found no home.
func (e *Executor) rollback(tx *transaction) int {
	lost := 0
	for i := len(tx.taken) - 1; i >= 0; i-- {
		s := tx.taken[i]
		if e.provider.RestoreItem(s) {
			continue
		}
		deposited, _ := e.provider.DepositItem(s)
		rem := s.Stack - deposited
		if rem <= 0 {
			continue
		}
		if e.provider.GiveToPlayer(s.WithStack(rem)) {
			continue
		}
		lost += rem
		e.log.Criticalf("craft %s: rollback LOST %d x item %d (prefix %d) taken from %s slot %d",
			tx.id, rem, s.ItemID, s.Prefix, item.SourceName(s.Source), s.Slot)
		e.bus.Publish(events.Event{
			Type:    events.RollbackLoss,
			TxID:    tx.id,
			ItemID:  s.ItemID,
			Count:   rem,
			Message: "rollback could not return items",
		})
	}
	tx.taken = nil
	return lost
}

func (e *Executor) publishFailure(txID string, r *recipe.Info, count int, err error) {
	ev := events.Event{Type: events.CraftFailed, TxID: txID, Count: count, Message: err.Error()}
	if r != nil {
		ev.Recipe = r.Index
		ev.ItemID = r.OutputItemID
	}
	e.bus.Publish(ev)
}
