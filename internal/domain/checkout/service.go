package checkout

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/bookshelf/internal/domain/auth"
	"github.com/xenking/bookshelf/internal/domain/cart"
	"github.com/xenking/bookshelf/internal/domain/order"
	"github.com/xenking/bookshelf/internal/domain/promo"
	"github.com/xenking/bookshelf/internal/domain/session"
)

var (
	// ErrNotAtPayment is returned when submitting a draft that has not
	// reached the payment step.
	ErrNotAtPayment = errors.New("checkout is not at the payment step")
	// ErrOrderFailed is returned when the order could not be stored. The
	// draft and cart are left untouched so the customer can retry.
	ErrOrderFailed = errors.New("order failed")
	// ErrRequestKeyConflict is returned when a request key resolves to an
	// order placed by another session.
	ErrRequestKeyConflict = errors.New("request key belongs to another order")
)

// OrderFailedMessage is shown to customers for ErrOrderFailed.
const OrderFailedMessage = "Failed to place order. Please try again."

// DeliveryFee is charged on every order.
var DeliveryFee = decimal.Zero

// Notifier is told about placed orders.
type Notifier interface {
	OrderPlaced(ctx context.Context, o *order.Order, items []order.Item) error
}

// Confirmation is returned for a placed order.
type Confirmation struct {
	// Reference is the customer-facing order number.
	Reference string
	OrderID   string
	Total     decimal.Decimal
	// Replayed is set when the request key matched an existing order.
	Replayed bool
}

// Summary is the draft together with the cart totals shown beside it.
type Summary struct {
	Draft    Draft
	Cart     cart.Cart
	Promo    promo.State
	Discount decimal.Decimal
	Delivery decimal.Decimal
	Total    decimal.Decimal
}

// Service persists drafts and submits orders.
type Service struct {
	store    session.Store
	carts    *cart.Service
	promos   *promo.Service
	orders   order.Repository
	notifier Notifier

	inflight singleflight.Group
	placed   metric.Int64Counter
	tracer   trace.Tracer
	now      func() time.Time
}

// NewService creates a checkout Service.
func NewService(
	store session.Store,
	carts *cart.Service,
	promos *promo.Service,
	orders order.Repository,
	notifier Notifier,
	meterProvider metric.MeterProvider,
	tracerProvider trace.TracerProvider,
) (*Service, error) {
	placed, err := meterProvider.Meter("bookshelf/checkout").Int64Counter("bookshelf.checkout.orders",
		metric.WithDescription("Order submissions by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create orders counter")
	}
	return &Service{
		store:    store,
		carts:    carts,
		promos:   promos,
		orders:   orders,
		notifier: notifier,
		placed:   placed,
		tracer:   tracerProvider.Tracer("bookshelf/checkout"),
		now:      time.Now,
	}, nil
}

func (s *Service) loadDraft(ctx context.Context, sessionID string) (Draft, error) {
	d, err := session.Load(ctx, s.store, sessionID, session.KeyCheckout, NewDraft())
	if err != nil {
		if errors.Is(err, session.ErrMissingID) {
			return Draft{}, err
		}
		zctx.From(ctx).Warn("Load checkout draft", zap.String("session_id", sessionID), zap.Error(err))
		return NewDraft(), nil
	}
	return d.normalize(), nil
}

// Get returns the session draft with cart totals. An empty email is
// prefilled from the signed-in user.
func (s *Service) Get(ctx context.Context, sessionID string, p *auth.Principal) (*Summary, error) {
	d, err := s.loadDraft(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if d.Customer.Email == "" && p != nil {
		d.Customer.Email = p.Email
	}
	return s.summarize(ctx, sessionID, d)
}

func (s *Service) summarize(ctx context.Context, sessionID string, d Draft) (*Summary, error) {
	c, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	st, err := s.promos.Get(ctx, sessionID, promo.ItemsFromCart(c))
	if err != nil {
		return nil, err
	}
	return &Summary{
		Draft:    d,
		Cart:     c,
		Promo:    st,
		Discount: st.DiscountAmount(c.TotalAmount()),
		Delivery: DeliveryFee,
		Total:    c.TotalAmount().Add(DeliveryFee),
	}, nil
}

// Apply runs ev against the session draft and stores the result. A failed
// validation is stored too, so the field errors survive a reload.
func (s *Service) Apply(ctx context.Context, sessionID string, ev Event) (*Summary, error) {
	d, err := s.loadDraft(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if next, ok := ev.(Next); ok && d.Step == StepCart {
		c, err := s.carts.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		next.CartEmpty = c.IsEmpty()
		ev = next
	}

	nd, terr := Transition(d, ev)
	var verr *ValidationError
	if terr != nil && !errors.As(terr, &verr) {
		return nil, terr
	}
	if err := session.Save(ctx, s.store, sessionID, session.KeyCheckout, nd); err != nil {
		return nil, errors.Wrap(err, "save checkout draft")
	}
	sum, err := s.summarize(ctx, sessionID, nd)
	if err != nil {
		return nil, err
	}
	return sum, terr
}

// Submit places the order for the session. Concurrent submissions for one
// session share a single attempt, and the request key makes retries of a
// stored order return the original confirmation. Request keys are scoped to
// the session.
func (s *Service) Submit(ctx context.Context, sessionID string, p *auth.Principal, idempotencyKey string) (*Confirmation, error) {
	if sessionID == "" {
		return nil, session.ErrMissingID
	}
	// The attempt is shared, so one caller going away must not cancel it
	// for the others.
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.inflight.Do(sessionID, func() (any, error) {
		return s.submit(shared, sessionID, p, idempotencyKey)
	})
	if err != nil {
		return nil, err
	}
	conf := *v.(*Confirmation)
	return &conf, nil
}

func (s *Service) submit(ctx context.Context, sessionID string, p *auth.Principal, idempotencyKey string) (_ *Confirmation, rerr error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Submit")
	defer func() {
		result := "ok"
		if rerr != nil {
			result = "error"
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		s.placed.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
		span.End()
	}()
	lg := zctx.From(ctx).With(zap.String("session_id", sessionID))

	d, err := s.loadDraft(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if d.Step != StepPayment {
		return nil, ErrNotAtPayment
	}
	if err := Validate(d.Customer); err != nil {
		return nil, err
	}
	c, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}
	st, err := s.promos.Get(ctx, sessionID, promo.ItemsFromCart(c))
	if err != nil {
		return nil, err
	}

	items := ItemsFromCart(c)
	raw, err := order.EncodeItems(items)
	if err != nil {
		return nil, err
	}
	key := idempotencyKey
	if key == "" {
		key = d.RequestKey
	}
	if key == "" {
		key = uuid.NewString()
	}
	o := &order.Order{
		ID:            uuid.NewString(),
		RequestKey:    key,
		SessionID:     sessionID,
		CustomerName:  d.Customer.Name,
		CustomerPhone: NormalizePhone(d.Customer.Phone),
		CustomerEmail: d.Customer.Email,
		Address:       d.Customer.FullAddress(),
		TotalAmount:   c.TotalAmount().Add(DeliveryFee),
		ItemsJSON:     raw,
		Status:        order.StatusPending,
		CreatedAt:     s.now(),
	}
	if p != nil && p.Via == auth.ViaToken && p.UserID != "" {
		uid := p.UserID
		o.UserID = &uid
	}
	span.SetAttributes(attribute.String("order.request_key", key))

	created, err := s.orders.Create(ctx, o)
	if err != nil {
		lg.Error("Create order", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrOrderFailed, err)
	}
	if !created && o.SessionID != sessionID {
		lg.Warn("Request key matched another session's order", zap.String("request_key", key))
		return nil, ErrRequestKeyConflict
	}

	if created {
		if err := s.promos.Redeem(ctx, st); err != nil {
			lg.Warn("Redeem promo", zap.String("code", st.Code), zap.Error(err))
		}
		if err := s.notifier.OrderPlaced(ctx, o, items); err != nil {
			lg.Warn("Notify order placed", zap.String("order_id", o.ID), zap.Error(err))
		}
	}

	if _, err := s.carts.Clear(ctx, sessionID); err != nil {
		lg.Error("Clear cart after order", zap.String("order_id", o.ID), zap.Error(err))
	}
	if err := s.store.Delete(ctx, sessionID, session.KeyCheckout); err != nil {
		lg.Error("Reset checkout draft after order", zap.String("order_id", o.ID), zap.Error(err))
	}
	if err := s.promos.Reset(ctx, sessionID); err != nil {
		lg.Error("Reset promo after order", zap.String("order_id", o.ID), zap.Error(err))
	}

	lg.Info("Order placed",
		zap.String("order_id", o.ID),
		zap.Bool("created", created),
		zap.String("total", o.TotalAmount.StringFixed(2)),
	)
	return &Confirmation{
		Reference: strconv.FormatInt(o.CreatedAt.UnixMilli(), 10),
		OrderID:   o.ID,
		Total:     o.TotalAmount,
		Replayed:  !created,
	}, nil
}

// ItemsFromCart snapshots cart lines for an order.
func ItemsFromCart(c cart.Cart) []order.Item {
	lines := c.Lines()
	items := make([]order.Item, len(lines))
	for i, l := range lines {
		items[i] = order.Item{
			ID:       l.ID,
			Title:    l.Title,
			Author:   l.Author,
			Price:    l.Price,
			Quantity: l.Quantity,
			Category: l.Category,
			ImageURL: l.ImageURL,
			IsCombo:  l.IsCombo,
			ComboID:  l.ComboID,
		}
	}
	return items
}
