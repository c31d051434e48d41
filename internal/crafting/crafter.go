package crafting

import (
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gravitas-games/storagehub/internal/config"
	"github.com/gravitas-games/storagehub/internal/events"
	"github.com/gravitas-games/storagehub/internal/item"
	"github.com/gravitas-games/storagehub/internal/logger"
	"github.com/gravitas-games/storagehub/internal/recipe"
)

// Step is one recipe invocation of a plan. Depth 0 is the final product.
type Step struct {
	Recipe      *recipe.Info
	CraftCount  int
	OutputCount int
	Depth       int
}

// Requirement is an amount of one material.
type Requirement struct {
	ItemID int
	Name   string
	Count  int
}

// Plan is an ordered list of steps, deepest sub-recipe first and the target
// last. CanCraft is only set once the plan survived a full simulation
// against a virtual copy of current holdings.
type Plan struct {
	Target          *recipe.Info
	Count           int
	Steps           []Step
	RawRequirements []Requirement // raw materials drawn from current holdings
	Shortfall       []Requirement // materials nothing in reach can provide
	CanCraft        bool
	Reason          error
}

func (p *Plan) clone() *Plan {
	c := *p
	c.Steps = append([]Step(nil), p.Steps...)
	c.RawRequirements = append([]Requirement(nil), p.RawRequirements...)
	c.Shortfall = append([]Requirement(nil), p.Shortfall...)
	return &c
}

// PlanResult reports how far ExecutePlan got.
type PlanResult struct {
	Completed int
	Outcomes  []*Outcome
}

type planKey struct{ recipe, count int }

type cachedPlan struct {
	generation uint64
	plan       *Plan
}

// Crafter builds and executes multi-step plans that craft missing
// intermediates on the way to a target recipe.
type Crafter struct {
	checker  *Checker
	index    *recipe.Index
	executor *Executor
	bus      events.Bus
	log      logger.Logger
	maxDepth int
	cache    *lru.Cache[planKey, cachedPlan]
}

// NewCrafter creates a crafter. The configured depth is always clamped by
// config.HardDepthCap.
func NewCrafter(checker *Checker, executor *Executor, cfg *config.Config, bus events.Bus, log logger.Logger) *Crafter {
	if cfg == nil {
		cfg = config.Default()
	}
	c := &Crafter{
		checker:  checker,
		index:    checker.Index(),
		executor: executor,
		bus:      events.OrNull(bus),
		log:      logger.OrNop(log),
		maxDepth: cfg.EffectiveDepth(),
	}
	if size := cfg.Crafting.PlanCacheSize; size > 0 {
		cache, err := lru.New[planKey, cachedPlan](size)
		if err != nil {
			c.log.Warnf("crafter: plan cache disabled: %v", err)
		} else {
			c.cache = cache
		}
	}
	return c
}

// MaxDepth returns the effective recursion limit.
func (c *Crafter) MaxDepth() int {
	return c.maxDepth
}

// builder accumulates one CalculatePlan call.
type builder struct {
	c         *Crafter
	steps     map[int]*Step
	order     []int
	shortfall map[int]*Requirement
	resolving map[int]bool
	err       error
}

// CalculatePlan builds a plan for count crafts of r. Plans are cached until
// the checker is next marked dirty.
func (c *Crafter) CalculatePlan(r *recipe.Info, count int) *Plan {
	if err := validate(r, count); err != nil {
		return &Plan{Target: r, Count: count, Reason: err}
	}
	key := planKey{r.Index, count}
	gen := c.checker.Generation()
	if c.cache != nil {
		if hit, ok := c.cache.Get(key); ok && hit.generation == gen {
			return hit.plan.clone()
		}
	}
	plan := c.calculate(r, count)
	if c.cache != nil {
		c.cache.Add(key, cachedPlan{generation: gen, plan: plan.clone()})
	}
	return plan
}

// InvalidateCache drops every cached plan.
func (c *Crafter) InvalidateCache() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

func (c *Crafter) calculate(r *recipe.Info, count int) *Plan {
	plan := &Plan{Target: r, Count: count}

	// the target itself never recurses on stations or environment
	if missing := c.checker.MissingStations(r); len(missing) > 0 {
		plan.Reason = fmt.Errorf("%w: %v", ErrMissingStation, missing)
		return plan
	}
	if env := c.checker.MissingEnvironment(r); env != 0 {
		plan.Reason = fmt.Errorf("%w: %v", ErrMissingEnvironment, env.Names())
		return plan
	}

	b := &builder{
		c:         c,
		steps:     make(map[int]*Step),
		shortfall: make(map[int]*Requirement),
		resolving: make(map[int]bool),
	}
	b.expand(r, count, 0)
	if b.err != nil {
		plan.Reason = b.err
		return plan
	}

	plan.Steps = b.ordered()
	for _, id := range sortedKeys(b.shortfall) {
		plan.Shortfall = append(plan.Shortfall, *b.shortfall[id])
	}
	if len(plan.Shortfall) > 0 {
		plan.Reason = fmt.Errorf("%w: %d materials cannot be obtained", ErrInsufficientMaterials, len(plan.Shortfall))
		return plan
	}

	raw, short := c.simulate(plan.Steps)
	plan.RawRequirements = raw
	if short != nil {
		plan.Shortfall = []Requirement{*short}
		plan.Reason = fmt.Errorf("%w: %s short by %d when the whole plan runs", ErrInsufficientMaterials, short.Name, short.Count)
		return plan
	}
	plan.CanCraft = true
	return plan
}

func (b *builder) expand(r *recipe.Info, crafts, depth int) {
	if b.err != nil {
		return
	}
	b.resolving[r.Index] = true
	defer delete(b.resolving, r.Index)

	if !b.addStep(r, crafts, depth) {
		return
	}
	for _, ing := range r.Ingredients {
		need, ok := item.MulQuantity(ing.RequiredStack, crafts)
		if !ok {
			b.err = fmt.Errorf("%w: %d x %s for %d crafts of %s", ErrQuantityOverflow, ing.RequiredStack, ingredientName(ing), crafts, r.Name())
			return
		}
		b.resolve(ing, need, depth+1)
		if b.err != nil {
			return
		}
	}
}

// resolve covers need units of ing, recursing into the first producer whose
// station and environment are available. depth is the depth a producing
// step would get.
func (b *builder) resolve(ing recipe.Ingredient, need, depth int) {
	have := b.c.checker.Count(ing.ItemID)
	if have >= need {
		return
	}
	missing := need - have
	if depth > b.c.maxDepth {
		b.c.log.Debugf("crafter: depth limit %d reached for %s", b.c.maxDepth, ingredientName(ing))
		b.addShortfall(ing, missing)
		return
	}
	for _, sub := range b.c.index.ProducersOf(ing) {
		if b.resolving[sub.Index] || sub.OutputStack <= 0 {
			continue
		}
		if !b.c.checker.Reachable(sub) {
			continue
		}
		b.expand(sub, item.CeilDiv(missing, sub.OutputStack), depth)
		return
	}
	b.addShortfall(ing, missing)
}

// addStep merges diamond dependencies: craft counts add, the deepest depth wins.
func (b *builder) addStep(r *recipe.Info, crafts, depth int) bool {
	st, ok := b.steps[r.Index]
	if !ok {
		st = &Step{Recipe: r}
		b.steps[r.Index] = st
		b.order = append(b.order, r.Index)
	}
	sum := int64(st.CraftCount) + int64(crafts)
	if sum > item.MaxQuantity {
		b.err = fmt.Errorf("%w: %s needed more than %d times", ErrQuantityOverflow, r.Name(), item.MaxQuantity)
		return false
	}
	out, ok := item.MulQuantity(r.OutputStack, int(sum))
	if !ok {
		b.err = fmt.Errorf("%w: output of %d crafts of %s", ErrQuantityOverflow, sum, r.Name())
		return false
	}
	st.CraftCount = int(sum)
	st.OutputCount = out
	if depth > st.Depth {
		st.Depth = depth
	}
	return true
}

func (b *builder) addShortfall(ing recipe.Ingredient, missing int) {
	req, ok := b.shortfall[ing.ItemID]
	if !ok {
		req = &Requirement{ItemID: ing.ItemID, Name: ingredientName(ing)}
		b.shortfall[ing.ItemID] = req
	}
	req.Count = item.AddQuantity(req.Count, missing)
}

// ordered returns the steps by depth descending, first-seen order breaking ties.
func (b *builder) ordered() []Step {
	out := make([]Step, 0, len(b.order))
	for _, idx := range b.order {
		out = append(out, *b.steps[idx])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Depth > out[j].Depth })
	return out
}

// simulate runs steps against a virtual copy of current holdings. It
// returns the raw materials drawn from holdings, or the first material that
// would go negative.
func (c *Crafter) simulate(steps []Step) ([]Requirement, *Requirement) {
	initial := c.checker.MaterialCounts()
	pool := make(map[int]int, len(initial))
	for id, n := range initial {
		pool[id] = n
	}
	for _, st := range steps {
		for _, ing := range allocationOrder(st.Recipe.Ingredients) {
			need, ok := item.MulQuantity(ing.RequiredStack, st.CraftCount)
			if !ok {
				return nil, &Requirement{ItemID: ing.ItemID, Name: ingredientName(ing), Count: item.MaxQuantity}
			}
			for _, id := range ing.Members() {
				if need == 0 {
					break
				}
				n := min(pool[id], need)
				pool[id] -= n
				need -= n
			}
			if need > 0 {
				return nil, &Requirement{ItemID: ing.ItemID, Name: ingredientName(ing), Count: need}
			}
		}
		pool[st.Recipe.OutputItemID] = item.AddQuantity(pool[st.Recipe.OutputItemID], st.OutputCount)
	}

	var raw []Requirement
	for _, id := range sortedKeys(initial) {
		if used := initial[id] - pool[id]; used > 0 {
			raw = append(raw, Requirement{ItemID: id, Name: c.materialName(id), Count: used})
		}
	}
	return raw, nil
}

func (c *Crafter) materialName(id int) string {
	for _, r := range c.index.GetRecipesByOutput(id) {
		if r.OutputName != "" {
			return r.OutputName
		}
	}
	for _, r := range c.index.GetRecipesUsingIngredient(id) {
		for _, ing := range r.Ingredients {
			if !ing.IsGroup && ing.ItemID == id && ing.Name != "" {
				return ing.Name
			}
		}
	}
	return fmt.Sprintf("item %d", id)
}

// ExecutePlan runs every step in order, refreshing material caches between
// steps. Intermediate outputs go into the inventory, or into the pool when
// the inventory is full. Execution
// stops at the first failing step; steps already completed are kept.
func (c *Crafter) ExecutePlan(plan *Plan) (*PlanResult, error) {
	res := &PlanResult{}
	if plan == nil || !plan.CanCraft {
		err := ErrPlanNotCraftable
		if plan != nil && plan.Reason != nil {
			err = fmt.Errorf("%w: %w", ErrPlanNotCraftable, plan.Reason)
		}
		return res, err
	}
	defer c.checker.MarkDirty()

	last := len(plan.Steps) - 1
	for i, st := range plan.Steps {
		c.checker.MarkDirty()
		out, err := c.executor.ExecuteCraft(st.Recipe, st.CraftCount, i != last)
		if err != nil {
			c.log.Warnf("crafter: plan for %s stopped at step %d/%d (%s x%d): %v",
				plan.Target.Name(), i+1, len(plan.Steps), st.Recipe.Name(), st.CraftCount, err)
			c.bus.Publish(events.Event{
				Type:    events.PlanFailed,
				Recipe:  plan.Target.Index,
				ItemID:  plan.Target.OutputItemID,
				Count:   res.Completed,
				Message: err.Error(),
			})
			return res, fmt.Errorf("step %d (%s x%d): %w", i+1, st.Recipe.Name(), st.CraftCount, err)
		}
		res.Completed++
		res.Outcomes = append(res.Outcomes, out)
	}

	c.log.Infof("crafter: crafted %d x %s in %d steps", plan.Count, plan.Target.Name(), len(plan.Steps))
	c.bus.Publish(events.Event{
		Type:   events.PlanCompleted,
		Recipe: plan.Target.Index,
		ItemID: plan.Target.OutputItemID,
		Count:  plan.Count,
	})
	return res, nil
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
