package crafting

import "errors"

var (
	ErrInsufficientMaterials = errors.New("insufficient materials")
	ErrMissingStation        = errors.New("missing crafting station")
	ErrMissingEnvironment    = errors.New("missing environment condition")
	ErrQuantityOverflow      = errors.New("quantity exceeds the supported range")
	ErrInvalidRecipe         = errors.New("invalid recipe")
	ErrOutputPlacement       = errors.New("no room for crafted output")
	ErrPlanNotCraftable      = errors.New("plan is not craftable")
	ErrTakeFailed            = errors.New("storage changed while consuming materials")
)
