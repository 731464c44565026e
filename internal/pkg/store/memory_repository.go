package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ManuelReschke/BookfoldAR/app/models"
)

// MemoryRepository is an in-process Repository. It honors the same unique
// keys as the MySQL schema and rolls back writes of a failed Transaction.
// Transactions run one at a time.
type MemoryRepository struct {
	txMu sync.Mutex
	mu   sync.Mutex

	purchases map[string]models.Purchase
	trials    map[string]models.Trial
	events    map[string]models.ProcessedEvent
	mutations int
	nextTrial uint

	failures map[string]error
	failAll  error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		purchases: make(map[string]models.Purchase),
		trials:    make(map[string]models.Trial),
		events:    make(map[string]models.ProcessedEvent),
		failures:  make(map[string]error),
	}
}

// FailOn makes every call of the named method return err. A nil err clears it.
func (r *MemoryRepository) FailOn(method string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, method)
		return
	}
	r.failures[method] = err
}

// FailAll makes every method return err, simulating an unreachable store.
func (r *MemoryRepository) FailAll(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAll = err
}

// Mutations counts committed writes.
func (r *MemoryRepository) Mutations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mutations
}

func (r *MemoryRepository) Purchases() []models.Purchase {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Purchase, 0, len(r.purchases))
	for _, p := range r.purchases {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *MemoryRepository) Trials() []models.Trial {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Trial, 0, len(r.trials))
	for _, t := range r.trials {
		out = append(out, t)
	}
	return out
}

func (r *MemoryRepository) Events() []models.ProcessedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ProcessedEvent, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e)
	}
	return out
}

// PutTrial stores a trial as-is. Tests use it to seed expired windows.
func (r *MemoryRepository) PutTrial(t models.Trial) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextTrial++
	t.ID = r.nextTrial
	r.trials[t.Email] = t
}

// PutPurchase stores a purchase as-is.
func (r *MemoryRepository) PutPurchase(p models.Purchase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	r.purchases[p.ID] = p
}

func (r *MemoryRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	if err := r.fail("Transaction"); err != nil {
		return err
	}
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snap := r.snapshot()
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.restore(snap)
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *MemoryRepository) FindPaidPurchaseByEmail(ctx context.Context, email string) (*models.Purchase, error) {
	return r.findPurchase("FindPaidPurchaseByEmail", func(p models.Purchase) bool {
		return p.Email == email && p.Status == models.PurchaseStatusPaid
	})
}

func (r *MemoryRepository) FindPendingPurchaseByEmail(ctx context.Context, email string) (*models.Purchase, error) {
	return r.findPurchase("FindPendingPurchaseByEmail", func(p models.Purchase) bool {
		return p.Email == email && p.Status == models.PurchaseStatusPending
	})
}

func (r *MemoryRepository) FindPurchaseBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error) {
	return r.findPurchase("FindPurchaseBySessionID", func(p models.Purchase) bool {
		return p.SessionID() == sessionID
	})
}

func (r *MemoryRepository) FindPurchaseByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Purchase, error) {
	return r.findPurchase("FindPurchaseByPaymentIntentID", func(p models.Purchase) bool {
		return p.PaymentIntentID() == paymentIntentID
	})
}

// findPurchase returns the newest purchase matching match.
func (r *MemoryRepository) findPurchase(method string, match func(models.Purchase) bool) (*models.Purchase, error) {
	if err := r.fail(method); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var found *models.Purchase
	for _, p := range r.purchases {
		if !match(p) {
			continue
		}
		if found == nil || p.CreatedAt.After(found.CreatedAt) {
			cp := p
			found = &cp
		}
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// LockPurchasesByEmail needs no lock of its own: transactions are serialized.
func (r *MemoryRepository) LockPurchasesByEmail(ctx context.Context, email string) ([]models.Purchase, error) {
	if err := r.fail("LockPurchasesByEmail"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var purchases []models.Purchase
	for _, p := range r.purchases {
		if p.Email == email {
			purchases = append(purchases, p)
		}
	}
	sort.Slice(purchases, func(i, j int) bool { return purchases[i].CreatedAt.Before(purchases[j].CreatedAt) })
	return purchases, nil
}

func (r *MemoryRepository) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	if err := r.fail("CreatePurchase"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if purchase.ID == "" {
		purchase.ID = uuid.New().String()
	}
	if purchase.Status == "" {
		purchase.Status = models.PurchaseStatusPending
	}
	if _, ok := r.purchases[purchase.ID]; ok {
		return ErrDuplicateKey
	}
	if sid := purchase.SessionID(); sid != "" {
		for _, p := range r.purchases {
			if p.SessionID() == sid {
				return ErrDuplicateKey
			}
		}
	}
	now := time.Now()
	purchase.CreatedAt = now
	purchase.UpdatedAt = now
	r.purchases[purchase.ID] = *purchase
	r.mutations++
	return nil
}

func (r *MemoryRepository) UpdatePurchase(ctx context.Context, purchase *models.Purchase, fromStatus string) (bool, error) {
	if err := r.fail("UpdatePurchase"); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.purchases[purchase.ID]
	if !ok || stored.Status != fromStatus {
		return false, nil
	}
	stored.Status = purchase.Status
	stored.ProcessorSessionID = purchase.ProcessorSessionID
	stored.ProcessorPaymentIntentID = purchase.ProcessorPaymentIntentID
	stored.Amount = purchase.Amount
	stored.Currency = purchase.Currency
	stored.UpdatedAt = time.Now()
	r.purchases[purchase.ID] = stored
	r.mutations++
	return true, nil
}

func (r *MemoryRepository) FindTrialByEmail(ctx context.Context, email string) (*models.Trial, error) {
	if err := r.fail("FindTrialByEmail"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.trials[email]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (r *MemoryRepository) CreateTrialIfNotExists(ctx context.Context, trial *models.Trial) (bool, *models.Trial, error) {
	if err := r.fail("CreateTrialIfNotExists"); err != nil {
		return false, nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.trials[trial.Email]; ok {
		return false, &existing, nil
	}
	r.nextTrial++
	stored := *trial
	stored.ID = r.nextTrial
	stored.CreatedAt = time.Now()
	r.trials[trial.Email] = stored
	r.mutations++
	return true, &stored, nil
}

func (r *MemoryRepository) ClaimEvent(ctx context.Context, event *models.ProcessedEvent) (bool, error) {
	if err := r.fail("ClaimEvent"); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.events[event.ProcessorEventID]; ok {
		return false, nil
	}
	r.events[event.ProcessorEventID] = *event
	r.mutations++
	return true, nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return r.fail("Ping")
}

func (r *MemoryRepository) fail(method string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll != nil {
		return r.failAll
	}
	return r.failures[method]
}

type memorySnapshot struct {
	purchases map[string]models.Purchase
	trials    map[string]models.Trial
	events    map[string]models.ProcessedEvent
	mutations int
}

func (r *MemoryRepository) snapshot() memorySnapshot {
	s := memorySnapshot{
		purchases: make(map[string]models.Purchase, len(r.purchases)),
		trials:    make(map[string]models.Trial, len(r.trials)),
		events:    make(map[string]models.ProcessedEvent, len(r.events)),
		mutations: r.mutations,
	}
	for k, v := range r.purchases {
		s.purchases[k] = v
	}
	for k, v := range r.trials {
		s.trials[k] = v
	}
	for k, v := range r.events {
		s.events[k] = v
	}
	return s
}

func (r *MemoryRepository) restore(s memorySnapshot) {
	r.purchases = s.purchases
	r.trials = s.trials
	r.events = s.events
	r.mutations = s.mutations
}
