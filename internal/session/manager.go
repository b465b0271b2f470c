package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"slotify/internal/catalog"
	"slotify/internal/clock"
	"slotify/internal/finalize"
	"slotify/internal/ledger"
	"slotify/internal/pricing"
	"slotify/pkg/logger"
)

// Catalog is the slice of the catalog service the manager needs.
type Catalog interface {
	GetItem(ctx context.Context, id uuid.UUID) (*catalog.InventoryItem, error)
	GetUnits(ctx context.Context, itemID uuid.UUID, unitIDs []uuid.UUID) ([]catalog.Unit, error)
	GetAvailability(ctx context.Context, itemID uuid.UUID, showtimeID *uuid.UUID) (*catalog.AvailabilityResponse, error)
}

// Finalizer runs the confirmation pipeline for a reviewed session.
type Finalizer interface {
	Finalize(ctx context.Context, in finalize.Input) (*finalize.Result, error)
}

// Manager owns all session transitions. Each session is serialized by its own
// lock, so concurrent gestures from the same shopper cannot interleave.
type Manager struct {
	store     *Store
	catalog   Catalog
	ledger    ledger.Ledger
	pricer    pricing.Engine
	finalizer Finalizer
	validate  *validator.Validate
	clock     clock.Clock
	holdTTL   time.Duration
	log       *logger.Logger

	locks sync.Map // session ID -> *sync.Mutex
}

func NewManager(store *Store, cat Catalog, ldg ledger.Ledger, pricer pricing.Engine, fin Finalizer, clk clock.Clock, holdTTL time.Duration) *Manager {
	return &Manager{
		store:     store,
		catalog:   cat,
		ledger:    ldg,
		pricer:    pricer,
		finalizer: fin,
		validate:  validator.New(),
		clock:     clk,
		holdTTL:   holdTTL,
		log:       logger.GetDefault(),
	}
}

func (m *Manager) lock(sessionID string) func() {
	v, _ := m.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Create opens a session for one shopper buying one item. Scheduled items
// start at showtime selection, everything else goes straight to units.
func (m *Manager) Create(ctx context.Context, shopperID string, itemID uuid.UUID) (*Session, error) {
	item, err := m.catalog.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !item.IsPublished() {
		return nil, fmt.Errorf("item %s is not open for booking", itemID)
	}

	stage := StageSelectingUnits
	if item.HasSchedule() {
		stage = StageSelectingSchedule
	}

	now := m.clock.Now()
	session := &Session{
		ID:        uuid.New().String(),
		ShopperID: shopperID,
		ItemID:    item.ID,
		ItemName:  item.Name,
		Kind:      item.Kind,
		Currency:  item.Currency,
		Stage:     stage,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.store.Put(session)

	m.log.Info("session created",
		"session_id", session.ID,
		"shopper_id", shopperID,
		"item_id", itemID,
		"stage", stage,
	)
	return session.snapshot(), nil
}

func (m *Manager) Get(ctx context.Context, sessionID, shopperID string) (*Session, error) {
	defer m.lock(sessionID)()

	s, err := m.store.Get(sessionID, shopperID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(), nil
}

// SetSchedule picks or changes the showtime. Changing it invalidates every
// hold, since holds are scoped per showtime.
func (m *Manager) SetSchedule(ctx context.Context, sessionID, shopperID string, showtimeID uuid.UUID) (*Session, error) {
	defer m.lock(sessionID)()

	s, err := m.store.Get(sessionID, shopperID)
	if err != nil {
		return nil, err
	}
	if s.Stage != StageSelectingSchedule && s.Stage != StageSelectingUnits {
		return nil, m.stageError(s)
	}

	item, err := m.catalog.GetItem(ctx, s.ItemID)
	if err != nil {
		return nil, err
	}
	found := false
	for _, st := range item.Showtimes {
		if st.ID == showtimeID {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrUnknownShowtime
	}

	if s.ShowtimeID != nil && *s.ShowtimeID != showtimeID {
		m.releaseAll(ctx, s)
	}
	s.ShowtimeID = &showtimeID
	s.Stage = StageSelectingUnits
	m.touch(s)
	return s.snapshot(), nil
}

// SelectUnits replaces the selection with the requested unit set. Only the
// delta touches the ledger: removed units are released and newly chosen ones
// acquired. Unchanged units keep their original hold expiry; holds run on
// wall time, not on selection activity. Refused units are reported, granted
// ones are kept.
func (m *Manager) SelectUnits(ctx context.Context, sessionID, shopperID string, unitIDs []uuid.UUID) (*Session, error) {
	defer m.lock(sessionID)()

	s, err := m.store.Get(sessionID, shopperID)
	if err != nil {
		return nil, err
	}
	if s.Stage != StageSelectingUnits {
		return nil, m.stageError(s)
	}
	return m.applySelection(ctx, s, unitIDs)
}

// SelectQuantity serves undifferentiated items: it keeps the slots already
// held and tops up from the first free ones until quantity is reached.
func (m *Manager) SelectQuantity(ctx context.Context, sessionID, shopperID string, quantity int) (*Session, error) {
	defer m.lock(sessionID)()

	s, err := m.store.Get(sessionID, shopperID)
	if err != nil {
		return nil, err
	}
	if s.Stage != StageSelectingUnits {
		return nil, m.stageError(s)
	}
	if s.Kind != catalog.KindQuantity {
		return nil, fmt.Errorf("item %s is seat mapped; select units by ID", s.ItemID)
	}
	if quantity < 0 {
		return nil, fmt.Errorf("quantity must not be negative")
	}

	picked := make([]uuid.UUID, 0, quantity)
	for _, u := range s.Units {
		if len(picked) == quantity {
			break
		}
		picked = append(picked, u.UnitID)
	}
	if len(picked) < quantity {
		avail, err := m.catalog.GetAvailability(ctx, s.ItemID, s.ShowtimeID)
		if err != nil {
			return nil, err
		}
		for _, u := range avail.Units {
			if len(picked) == quantity {
				break
			}
			if u.State == ledger.UnitFree && s.findUnit(u.ID) == nil {
				picked = append(picked, u.ID)
			}
		}
	}
	if len(picked) < quantity {
		return nil, fmt.Errorf("only %d of %d requested slots are available", len(picked), quantity)
	}
	return m.applySelection(ctx, s, picked)
}

func (m *Manager) applySelection(ctx context.Context, s *Session, unitIDs []uuid.UUID) (*Session, error) {
	requested := make(map[uuid.UUID]struct{}, len(unitIDs))
	for _, id := range unitIDs {
		requested[id] = struct{}{}
	}

	var toRelease []string
	for _, u := range s.Units {
		if _, keep := requested[u.UnitID]; !keep {
			toRelease = append(toRelease, u.UnitID.String())
		}
	}
	var added []string
	for _, id := range unitIDs {
		if s.findUnit(id) == nil {
			added = append(added, id.String())
		}
	}

	key := catalog.InventoryKey(s.ItemID, s.ShowtimeID)
	if len(toRelease) > 0 {
		m.release(ctx, key, toRelease, s.ID)
	}

	s.Conflicts = nil
	if len(unitIDs) == 0 {
		s.Units = nil
		s.Quote = nil
		s.HoldExpiresAt = time.Time{}
		m.touch(s)
		return s.snapshot(), nil
	}

	units, err := m.catalog.GetUnits(ctx, s.ItemID, unitIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]catalog.Unit, len(units))
	for _, u := range units {
		byID[u.ID] = u
	}

	// Only the added delta touches the ledger. Units already in the selection
	// keep the hold they have; their expiry is never refreshed here.
	granted := make(map[string]struct{}, len(added))
	var result ledger.AcquireResult
	if len(added) > 0 {
		result, err = m.ledger.Acquire(ctx, key, added, s.ID, m.holdTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire units: %w", err)
		}
		for _, id := range result.Granted {
			granted[id] = struct{}{}
		}
	}

	kept := 0
	selection := make([]SelectedUnit, 0, len(unitIDs))
	for _, id := range unitIDs {
		if prev := s.findUnit(id); prev != nil {
			selection = append(selection, *prev)
			kept++
			continue
		}
		if _, ok := granted[id.String()]; !ok {
			continue
		}
		unit := byID[id]
		selection = append(selection, SelectedUnit{UnitID: unit.ID, Label: unit.Label, Price: unit.Price})
	}
	s.Units = selection

	// HoldExpiresAt tracks the earliest expiry in the selection. Kept units
	// expire first, so a fresh grant only sets it when nothing was kept.
	if kept == 0 {
		s.HoldExpiresAt = result.ExpiresAt
	}

	for _, id := range result.Conflicted {
		label := id
		if parsed, err := uuid.Parse(id); err == nil {
			if unit, ok := byID[parsed]; ok {
				label = unit.Label
			}
		}
		s.Conflicts = append(s.Conflicts, label)
	}

	m.reprice(s)
	m.touch(s)

	m.log.Info("selection updated",
		"session_id", s.ID,
		"held", len(s.Units),
		"conflicted", len(s.Conflicts),
	)
	return s.snapshot(), nil
}

// SetParticipant attaches traveler details to one held unit.
func (m *Manager) SetParticipant(ctx context.Context, sessionID, shopperID string, unitID uuid.UUID, p Participant) (*Session, error) {
	defer m.lock(sessionID)()

	s, err := m.store.Get(sessionID, shopperID)
	if err != nil {
		return nil, err
	}
	if s.Stage != StageCapturingParticipants {
		return nil, m.stageError(s)
	}
	if err := m.validate.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid participant: %w", err)
	}
	unit := s.findUnit(unitID)
	if unit == nil {
		return nil, fmt.Errorf("unit %s is not part of this session", unitID)
	}
	unit.Participant = &p
	m.touch(s)
	return s.snapshot(), nil
}

// Advance moves the session one stage forward, enforcing the gate of the
// stage being left. Holds are revalidated at every forward step.
func (m *Manager) Advance(ctx context.Context, sessionID, shopperID string) (*Session, error) {
	defer m.lock(sessionID)()

	s, err := m.store.Get(sessionID, shopperID)
	if err != nil {
		return nil, err
	}

	switch s.Stage {
	case StageSelectingSchedule:
		return nil, ErrScheduleRequired

	case StageSelectingUnits:
		if len(s.Units) == 0 {
			return nil, ErrNoUnitsSelected
		}
		if err := m.revalidateHolds(ctx, s); err != nil {
			return s.snapshot(), err
		}
		s.Stage = StageCapturingParticipants

	case StageCapturingParticipants:
		if err := m.participantsComplete(s); err != nil {
			return nil, err
		}
		if err := m.revalidateHolds(ctx, s); err != nil {
			s.Stage = StageSelectingUnits
			return s.snapshot(), err
		}
		frozen := *s.Quote
		s.Frozen = &frozen
		s.Stage = StageReviewing

	case StageReviewing:
		return nil, fmt.Errorf("%w: confirm the session to finalize", ErrWrongStage)

	default:
		return nil, m.stageError(s)
	}

	m.touch(s)
	return s.snapshot(), nil
}

// Back moves one stage toward the start. Landing back in unit selection
// releases every hold; the shopper is explicitly reopening the choice.
func (m *Manager) Back(ctx context.Context, sessionID, shopperID string) (*Session, error) {
	defer m.lock(sessionID)()

	s, err := m.store.Get(sessionID, shopperID)
	if err != nil {
		return nil, err
	}

	switch s.Stage {
	case StageReviewing:
		s.Frozen = nil
		s.Stage = StageCapturingParticipants

	case StageCapturingParticipants:
		m.releaseAll(ctx, s)
		s.Stage = StageSelectingUnits

	case StageSelectingUnits:
		if s.ShowtimeID == nil {
			return nil, fmt.Errorf("%w: nothing before unit selection", ErrWrongStage)
		}
		m.releaseAll(ctx, s)
		s.ShowtimeID = nil
		s.Stage = StageSelectingSchedule

	default:
		return nil, m.stageError(s)
	}

	m.touch(s)
	return s.snapshot(), nil
}

// Confirm runs finalization on the frozen review. On inventory conflicts the
// session drops the contested units and reopens selection; on payment failure
// the units are freed and the session stays reviewable for a retry.
func (m *Manager) Confirm(ctx context.Context, sessionID, shopperID, paymentMethod string) (*Session, *finalize.Result, error) {
	defer m.lock(sessionID)()

	s, err := m.store.Get(sessionID, shopperID)
	if err != nil {
		return nil, nil, err
	}
	if s.Stage != StageReviewing {
		return nil, nil, m.stageError(s)
	}
	if s.Frozen == nil {
		return nil, nil, fmt.Errorf("%w: no frozen breakdown", ErrWrongStage)
	}

	s.Stage = StageFinalizing
	m.touch(s)

	in := finalize.Input{
		SessionID:     s.ID,
		ShopperID:     s.ShopperID,
		ItemID:        s.ItemID,
		ItemName:      s.ItemName,
		ShowtimeID:    s.ShowtimeID,
		InventoryKey:  catalog.InventoryKey(s.ItemID, s.ShowtimeID),
		Breakdown:     *s.Frozen,
		Currency:      s.Currency,
		PaymentMethod: paymentMethod,
	}
	for _, u := range s.Units {
		sel := finalize.UnitSelection{UnitID: u.UnitID, Label: u.Label, Price: u.Price}
		if u.Participant != nil {
			sel.ParticipantName = u.Participant.Name
			sel.ParticipantAge = u.Participant.Age
			sel.Gender = u.Participant.Gender
		}
		in.Units = append(in.Units, sel)
	}

	result, err := m.finalizer.Finalize(ctx, in)
	if err != nil {
		m.handleFinalizeFailure(s, err)
		return s.snapshot(), nil, err
	}

	s.Stage = StageConfirmed
	s.BookingRef = result.Booking.BookingRef
	s.Conflicts = nil
	m.touch(s)
	return s.snapshot(), result, nil
}

func (m *Manager) handleFinalizeFailure(s *Session, err error) {
	if ice, ok := finalize.IsInventoryChanged(err); ok {
		s.Conflicts = m.labelsFor(s, ice.Units)
		s.dropUnits(ice.Units)
		s.Frozen = nil
		m.reprice(s)
		s.Stage = StageSelectingUnits
		m.touch(s)
		return
	}

	if errors.Is(err, finalize.ErrPaymentFailed) {
		// The finalizer reinstated the consumed units to free; they are not
		// retaken on the shopper's behalf. The session returns to review so a
		// retry is possible, but the retry races everyone else: if a unit is
		// gone by then, Consume reports it and selection reopens.
		s.HoldExpiresAt = time.Time{}
		s.Stage = StageReviewing
		m.touch(s)
		return
	}

	// Persistence failure after capture: the units are consumed and the money
	// moved. Freeze the session where it is for operator follow-up.
	m.touch(s)
}

// Cancel abandons the session and frees everything it held.
func (m *Manager) Cancel(ctx context.Context, sessionID, shopperID string) error {
	defer m.lock(sessionID)()

	s, err := m.store.Get(sessionID, shopperID)
	if err != nil {
		return err
	}
	if s.Stage == StageConfirmed {
		return fmt.Errorf("%w: confirmed sessions cannot be cancelled", ErrSessionFinished)
	}

	m.releaseAll(ctx, s)
	s.Stage = StageAbandoned
	m.store.Delete(s.ID)
	m.locks.Delete(s.ID)

	m.log.Info("session abandoned", "session_id", s.ID, "shopper_id", shopperID)
	return nil
}

// revalidateHolds drops any unit the ledger no longer honors and reports it.
func (m *Manager) revalidateHolds(ctx context.Context, s *Session) error {
	key := catalog.InventoryKey(s.ItemID, s.ShowtimeID)
	stale, err := m.ledger.Validate(ctx, key, s.unitIDs(), s.ID)
	if err != nil {
		return fmt.Errorf("failed to validate holds: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}
	s.Conflicts = m.labelsFor(s, stale)
	s.dropUnits(stale)
	m.reprice(s)
	m.touch(s)
	return ErrSessionExpired
}

func (m *Manager) participantsComplete(s *Session) error {
	if len(s.Units) == 0 {
		return ErrNoUnitsSelected
	}
	if s.Kind == catalog.KindQuantity {
		// Quantity items only need a lead participant on the first slot.
		if s.Units[0].Participant == nil {
			return fmt.Errorf("%w: lead participant missing", ErrParticipantsIncomplete)
		}
		return nil
	}
	for _, u := range s.Units {
		if u.Participant == nil {
			return fmt.Errorf("%w: unit %s has no participant", ErrParticipantsIncomplete, u.Label)
		}
	}
	return nil
}

func (m *Manager) releaseAll(ctx context.Context, s *Session) {
	if len(s.Units) == 0 {
		return
	}
	m.release(ctx, catalog.InventoryKey(s.ItemID, s.ShowtimeID), s.unitIDs(), s.ID)
	s.Units = nil
	s.Quote = nil
	s.Frozen = nil
	s.HoldExpiresAt = time.Time{}
}

// release frees holds fire-and-forget, retrying once on failure. A release
// that still fails is left to the TTL; it must not block the shopper.
func (m *Manager) release(ctx context.Context, key string, unitIDs []string, sessionID string) {
	err := m.ledger.Release(ctx, key, unitIDs, sessionID)
	if err == nil {
		return
	}
	m.log.Warn("release failed, retrying once",
		"session_id", sessionID,
		"units", unitIDs,
		"error", err,
	)
	if err := m.ledger.Release(ctx, key, unitIDs, sessionID); err != nil {
		m.log.Error("release retry failed, holds will lapse by TTL",
			"session_id", sessionID,
			"units", unitIDs,
			"error", err,
		)
	}
}

func (m *Manager) reprice(s *Session) {
	if len(s.Units) == 0 {
		s.Quote = nil
		return
	}
	quote := m.pricer.Quote(s.unitPrices(), s.taxBase())
	s.Quote = &quote
}

func (m *Manager) labelsFor(s *Session, unitIDs []string) []string {
	labels := make([]string, 0, len(unitIDs))
	for _, id := range unitIDs {
		label := id
		if parsed, err := uuid.Parse(id); err == nil {
			if u := s.findUnit(parsed); u != nil {
				label = u.Label
			}
		}
		labels = append(labels, label)
	}
	return labels
}

func (m *Manager) touch(s *Session) {
	s.UpdatedAt = m.clock.Now()
}

func (m *Manager) stageError(s *Session) error {
	switch s.Stage {
	case StageConfirmed, StageAbandoned:
		return ErrSessionFinished
	default:
		return fmt.Errorf("%w: stage is %s", ErrWrongStage, s.Stage)
	}
}
