package recipe

import "github.com/dragonkeep/server/errs"

// Inventory is the minimal collaborator Craft needs from a player's
// inventory: checking and consuming a quantity of an item, and granting the
// recipe's outputs. A concrete implementation lives alongside the entity
// store's economy wiring; this package only depends on the interface.
type Inventory interface {
	Count(itemID uint32) uint32
	Remove(itemID uint32, qty uint32) error
	Grant(itemID uint32, qty uint32) error
}

// Craft attempts to craft recipeID from inv on behalf of a player at the
// given level, consuming inputs and granting outputs only if every
// precondition holds. It returns the structured errors from the errs package
// (NotFound, LevelTooLow, InsufficientMaterials, InventoryFull) rather than
// a bare error, so a caller can report the specific failure reason back to
// the client as a user-visible action result.
func (g *Graph) Craft(recipeID uint32, inv Inventory, playerLevel uint8) (*Recipe, error) {
	r, err := g.Lookup(recipeID)
	if err != nil {
		return nil, err
	}
	if playerLevel < r.RequiredLevel {
		return nil, errs.NewLevelTooLow("recipe.Graph.Craft", int(r.RequiredLevel), int(playerLevel))
	}
	for _, in := range r.Inputs {
		if have := inv.Count(in.ItemID); have < in.Qty {
			return nil, errs.NewInsufficientMaterials("recipe.Graph.Craft", int(in.Qty), int(have))
		}
	}
	for _, in := range r.Inputs {
		if err := inv.Remove(in.ItemID, in.Qty); err != nil {
			return nil, errs.Wrap("recipe.Graph.Craft", errs.Unknown, err)
		}
	}
	for _, out := range r.Outputs {
		if err := inv.Grant(out.ItemID, out.Qty); err != nil {
			return r, errs.Wrap("recipe.Graph.Craft", errs.InventoryFull, err)
		}
	}
	return r, nil
}
