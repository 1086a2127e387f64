// Package usecase provides application use cases.
//
// Use cases own the unit of work: they open the scope, drive the bus and
// decide commit boundaries. Handlers they reach never start scopes.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"craftbot.io/craftbot/internal/bus"
	"craftbot.io/craftbot/internal/config"
	"craftbot.io/craftbot/internal/domain"
	apperrors "craftbot.io/craftbot/internal/pkg/errors"
	"craftbot.io/craftbot/internal/pkg/logger"
	"craftbot.io/craftbot/internal/uow"
)

const (
	defaultRequestTimeout  = 5 * time.Second
	defaultGenerateTimeout = 30 * time.Second
)

// CombineInput is one combination request.
type CombineInput struct {
	UserID       int64  `json:"user_id"`
	ChatInstance string `json:"chat_instance"`
	ElementAID   int64  `json:"element_a_id"`
	ElementBID   int64  `json:"element_b_id"`
}

func (in CombineInput) validate() error {
	switch {
	case in.UserID <= 0:
		return apperrors.ErrInvalidCombinationf("user id is required")
	case in.ChatInstance == "":
		return apperrors.ErrInvalidCombinationf("chat instance is required")
	case in.ElementAID <= 0 || in.ElementBID <= 0:
		return apperrors.ErrInvalidCombinationf("element ids must be positive")
	}
	return nil
}

// CombineUseCase crafts a result element from two unlocked inputs.
//
// Unknown pairs run in two phases within one scope: the result element is
// committed first, then the recipe and progress rows are written against
// it. A failure in the second phase leaves the element in place and is
// reported as CRAFT_PERSIST_FAILED.
type CombineUseCase struct {
	bus             *bus.Bus
	uow             *uow.UnitOfWork
	requestTimeout  time.Duration
	generateTimeout time.Duration
	repeatP         float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewCombineUseCase creates a new CombineUseCase. A zero seed draws the
// repeat-roll source from the runtime.
func NewCombineUseCase(b *bus.Bus, u *uow.UnitOfWork, craft config.CraftConfig, busCfg config.BusConfig) *CombineUseCase {
	seed := craft.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	timeout := busCfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &CombineUseCase{
		bus:             b,
		uow:             u,
		requestTimeout:  timeout,
		generateTimeout: defaultGenerateTimeout,
		repeatP:         craft.RepeatProbability,
		rng:             rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// WithRand replaces the repeat-roll source.
func (uc *CombineUseCase) WithRand(r *rand.Rand) *CombineUseCase {
	uc.mu.Lock()
	uc.rng = r
	uc.mu.Unlock()
	return uc
}

// WithRepeatProbability overrides the configured repeat probability.
func (uc *CombineUseCase) WithRepeatProbability(p float64) *CombineUseCase {
	uc.repeatP = p
	return uc
}

// WithGenerateTimeout bounds the language-model round trip.
func (uc *CombineUseCase) WithGenerateTimeout(d time.Duration) *CombineUseCase {
	if d > 0 {
		uc.generateTimeout = d
	}
	return uc
}

// craft carries the state of one Execute call.
type craft struct {
	in     CombineInput
	a, b   int64
	result domain.Element
	// created is set when this call inserted the result element.
	created bool
	// unlocked is set when this call granted the result to the user.
	unlocked bool
}

// Execute runs one combination.
func (uc *CombineUseCase) Execute(ctx context.Context, input CombineInput) (*domain.ElementResponse, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	a, b := domain.CanonicalPair(input.ElementAID, input.ElementBID)
	c := &craft{in: input, a: a, b: b}

	err := uc.uow.Start(ctx, func(ctx context.Context) error {
		if err := uc.checkAccess(ctx, c); err != nil {
			return err
		}
		recipes, err := bus.Call[[]domain.Recipe](ctx, uc.bus, bus.NewEvent(domain.TopicRecipeFetch,
			bus.Record(domain.RecipeFetchPayload{ElementAID: a, ElementBID: b})), uc.requestTimeout)
		if err != nil {
			return fmt.Errorf("lookup recipe: %w", err)
		}
		if len(recipes) > 0 {
			return uc.replay(ctx, c, recipes[0])
		}
		return uc.discover(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	if c.created {
		uc.announce(ctx, c)
	}
	resp := domain.NewElementResponse(c.result, c.unlocked)
	return &resp, nil
}

// checkAccess requires both inputs to be unlocked for the user.
func (uc *CombineUseCase) checkAccess(ctx context.Context, c *craft) error {
	unlocked, err := bus.Call[[]int64](ctx, uc.bus, bus.NewEvent(domain.TopicProgressCheck,
		bus.Record(domain.ProgressCheckPayload{
			UserID:       c.in.UserID,
			ChatInstance: c.in.ChatInstance,
			ElementIDs:   []int64{c.a, c.b},
		})), uc.requestTimeout)
	if err != nil {
		return fmt.Errorf("check access: %w", err)
	}
	have := make(map[int64]bool, len(unlocked))
	for _, id := range unlocked {
		have[id] = true
	}
	for _, id := range []int64{c.a, c.b} {
		if !have[id] {
			return apperrors.ErrElementLockedf(id)
		}
	}
	return nil
}

// replay serves a known recipe.
func (uc *CombineUseCase) replay(ctx context.Context, c *craft, recipe domain.Recipe) error {
	found, err := bus.Call[[]domain.Element](ctx, uc.bus, bus.NewEvent(domain.TopicElementFetch,
		bus.Record(domain.ElementFetchPayload{IDs: []int64{recipe.ResultID}})), uc.requestTimeout)
	if err != nil {
		return fmt.Errorf("fetch recipe result: %w", err)
	}
	c.result = found[0]
	return uc.grant(ctx, c)
}

// discover resolves an unknown pair.
func (uc *CombineUseCase) discover(ctx context.Context, c *craft) error {
	inputs, err := bus.Call[[]domain.Element](ctx, uc.bus, bus.NewEvent(domain.TopicElementFetch,
		bus.Record(domain.ElementFetchPayload{IDs: []int64{c.a, c.b}})), uc.requestTimeout)
	if err != nil {
		return fmt.Errorf("fetch inputs: %w", err)
	}
	byID := make(map[int64]domain.Element, len(inputs))
	for _, e := range inputs {
		byID[e.ID] = e
	}
	ea, eb := byID[c.a], byID[c.b]

	if pick, ok := uc.rollRepeat(c.a == c.b); ok {
		c.result = ea
		if pick == 1 {
			c.result = eb
		}
		logger.Ctx(ctx).Debug("Combination repeats an input",
			zap.Int64("element_a_id", c.a),
			zap.Int64("element_b_id", c.b),
			zap.Int64("result_id", c.result.ID),
		)
	} else if err := uc.generate(ctx, c, ea, eb); err != nil {
		return err
	}

	sess, err := uc.uow.Session(ctx)
	if err != nil {
		return err
	}
	if err := sess.Commit(ctx); err != nil {
		return fmt.Errorf("commit result element: %w", err)
	}

	if err := uc.record(ctx, c); err != nil {
		logger.Ctx(ctx).Error("Crafting result persisted partially",
			zap.Int64("result_id", c.result.ID),
			zap.Error(err),
		)
		return apperrors.ErrCraftPersistFailed(err)
	}
	return nil
}

// rollRepeat reports whether the combination returns one of its inputs
// and which one. Identical inputs double the probability.
func (uc *CombineUseCase) rollRepeat(identical bool) (int, bool) {
	p := uc.repeatP
	if identical {
		p *= 2
	}
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.rng.Float64() >= p {
		return 0, false
	}
	return uc.rng.IntN(2), true
}

// generate asks the agent for a new element and stores it. A name taken
// by a concurrent discovery resolves to the stored element.
func (uc *CombineUseCase) generate(ctx context.Context, c *craft, ea, eb domain.Element) error {
	generated, err := bus.Call[[]domain.GeneratedElement](ctx, uc.bus, bus.NewEvent(domain.TopicElementGenerate,
		bus.Record(domain.ElementGeneratePayload{A: ea, B: eb})), uc.generateTimeout)
	if err != nil {
		return fmt.Errorf("generate element: %w", err)
	}
	g := generated[0]

	created, err := bus.Call[[]domain.Element](ctx, uc.bus, bus.NewEvent(domain.TopicElementCreate,
		bus.Record(domain.ElementCreatePayload{Name: g.Name, Emoji: g.Emoji})), uc.requestTimeout)
	if err == nil {
		c.result = created[0]
		c.created = true
		return nil
	}
	if !errors.Is(err, apperrors.ErrEntityAlreadyExists) {
		return fmt.Errorf("create element: %w", err)
	}

	existing, err := bus.Call[[]domain.Element](ctx, uc.bus, bus.NewEvent(domain.TopicElementFetch,
		bus.Record(domain.ElementFetchPayload{Name: g.Name})), uc.requestTimeout)
	if err != nil {
		return fmt.Errorf("fetch existing element: %w", err)
	}
	c.result = existing[0]
	return nil
}

// record writes the recipe and grants the result. Runs after the result
// element is committed.
func (uc *CombineUseCase) record(ctx context.Context, c *craft) error {
	_, err := bus.Call[[]domain.Recipe](ctx, uc.bus, bus.NewEvent(domain.TopicRecipeCreate,
		bus.Record(domain.RecipeCreatePayload{ElementAID: c.a, ElementBID: c.b, ResultID: c.result.ID})), uc.requestTimeout)
	if err != nil && !errors.Is(err, apperrors.ErrEntityAlreadyExists) {
		return fmt.Errorf("create recipe: %w", err)
	}
	return uc.grant(ctx, c)
}

// grant unlocks the result for the user. Already unlocked is not an error.
func (uc *CombineUseCase) grant(ctx context.Context, c *craft) error {
	_, err := bus.Call[[]domain.Progress](ctx, uc.bus, bus.NewEvent(domain.TopicProgressCreate,
		bus.Record(domain.ProgressPayload{
			UserID:       c.in.UserID,
			ChatInstance: c.in.ChatInstance,
			ElementID:    c.result.ID,
		})), uc.requestTimeout)
	switch {
	case err == nil:
		c.unlocked = true
	case errors.Is(err, apperrors.ErrEntityAlreadyExists):
	default:
		return fmt.Errorf("create progress: %w", err)
	}
	return nil
}

// announce broadcasts a newly created element. Failures are logged only.
func (uc *CombineUseCase) announce(ctx context.Context, c *craft) {
	evt := bus.NewEvent(domain.TopicElementDiscovered, bus.Record(domain.ElementDiscoveredPayload{
		Element:      c.result,
		Inputs:       [2]int64{c.a, c.b},
		UserID:       c.in.UserID,
		ChatInstance: c.in.ChatInstance,
	}))
	if err := uc.bus.Publish(ctx, evt); err != nil {
		logger.Ctx(ctx).Warn("Failed to announce discovered element",
			zap.Int64("element_id", c.result.ID),
			zap.Error(err),
		)
	}
}
