// Package conversation runs one customer turn: classify the message, move the
// session through its states, and answer with a templated reply.
package conversation

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/example/chat-storefront/internal/domain/catalog"
	"github.com/example/chat-storefront/internal/domain/history"
	"github.com/example/chat-storefront/internal/domain/order"
	"github.com/example/chat-storefront/internal/intent"
	"github.com/example/chat-storefront/internal/payment"
	"github.com/example/chat-storefront/internal/purchase"
	"github.com/example/chat-storefront/internal/reply"
	"github.com/example/chat-storefront/internal/search"
	"github.com/example/chat-storefront/internal/session"
)

var ErrInvalidMessage = errors.New("customer_id and text are required")

const (
	DefaultMaxCandidates = 5
	maxTurnQuantity      = 99
)

type Message struct {
	CustomerID string `json:"customer_id"`
	Text       string `json:"text"`
}

// Response is the structured outcome of a turn. ReplyText is the only part
// meant for the customer verbatim.
type Response struct {
	ReplyText       string           `json:"reply_text"`
	Intent          intent.Intent    `json:"intent_label"`
	ResolvedProduct *catalog.Product `json:"resolved_product,omitempty"`
	PaymentLink     string           `json:"payment_link,omitempty"`
	OrderID         string           `json:"order_id,omitempty"`
	State           session.State    `json:"state"`
}

// Purchaser is the purchase saga as seen by the dispatcher.
type Purchaser interface {
	Purchase(ctx context.Context, req purchase.Request) (*purchase.Result, error)
}

type Deps struct {
	Classifier *intent.Classifier
	Resolver   *search.Resolver
	Catalog    catalog.Store
	Orders     *order.Service
	History    history.Store
	Sessions   session.Store
	Purchaser  Purchaser
	// Enricher may rephrase replies; nil keeps them as rendered.
	Enricher      reply.Enricher
	MaxCandidates int
}

// turn carries one message through the handlers. dirty is set by any handler
// that changed the session, and only then is the session saved.
type turn struct {
	msg    Message
	intent intent.Intent
	sess   *session.Session
	dirty  bool
}

type turnHandler func(ctx context.Context, t *turn) (Response, error)

type Dispatcher struct {
	classifier    *intent.Classifier
	resolver      *search.Resolver
	catalog       catalog.Store
	orders        *order.Service
	history       history.Store
	sessions      session.Store
	purchaser     Purchaser
	enricher      reply.Enricher
	maxCandidates int
	locker        *session.Locker
	handlers      map[intent.Intent]turnHandler
	logger        *zap.Logger
}

func NewDispatcher(d Deps, logger *zap.Logger) *Dispatcher {
	if d.Enricher == nil {
		d.Enricher = reply.PassThrough{}
	}
	if d.MaxCandidates <= 0 {
		d.MaxCandidates = DefaultMaxCandidates
	}
	disp := &Dispatcher{
		classifier:    d.Classifier,
		resolver:      d.Resolver,
		catalog:       d.Catalog,
		orders:        d.Orders,
		history:       d.History,
		sessions:      d.Sessions,
		purchaser:     d.Purchaser,
		enricher:      d.Enricher,
		maxCandidates: d.MaxCandidates,
		locker:        session.NewLocker(),
		logger:        logger.Named("dispatcher"),
	}
	disp.handlers = map[intent.Intent]turnHandler{
		intent.PaymentConfirmation: disp.confirmPayment,
		intent.Greeting:            disp.greet,
		intent.Help:                disp.help,
		intent.PriceInquiry:        disp.lookup,
		intent.AvailabilityCheck:   disp.lookup,
		intent.Purchase:            disp.lookup,
		intent.Unknown:             disp.fallback,
	}
	return disp
}

// Handle processes one message. Turns of the same customer are serialized.
// Store failures become a generic failure reply; only an invalid message or
// a cancelled context is returned as an error.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) (Response, error) {
	msg.CustomerID = strings.TrimSpace(msg.CustomerID)
	if msg.CustomerID == "" || strings.TrimSpace(msg.Text) == "" {
		return Response{}, ErrInvalidMessage
	}

	unlock := d.locker.Lock(msg.CustomerID)
	defer unlock()

	log := d.logger.With(zap.String("customer_id", msg.CustomerID))

	t := &turn{msg: msg, intent: d.classifier.Classify(msg.Text)}
	sess, err := session.Load(ctx, d.sessions, msg.CustomerID)
	if err != nil {
		log.Error("failed to load session", zap.Error(err))
		return d.failure(ctx, t.intent)
	}
	t.sess = sess

	resp, err := d.dispatch(ctx, t)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, ctxErr
		}
		log.Error("turn failed", zap.String("intent", string(t.intent)), zap.Error(err))
		return d.failure(ctx, t.intent)
	}

	if t.dirty {
		if err := d.sessions.Save(ctx, t.sess); err != nil {
			log.Error("failed to save session", zap.Error(err))
			return d.failure(ctx, t.intent)
		}
	}

	resp.State = t.sess.State()
	resp.ReplyText = d.enrich(ctx, msg.CustomerID, resp.ReplyText)
	log.Debug("turn handled",
		zap.String("intent", string(resp.Intent)),
		zap.String("state", string(resp.State)))
	return resp, nil
}

// dispatch applies the session-state transitions that outrank the intent,
// then hands the turn to the handler for its intent.
func (d *Dispatcher) dispatch(ctx context.Context, t *turn) (Response, error) {
	if t.intent != intent.PaymentConfirmation {
		if t.sess.AwaitingSelection && len(t.sess.Candidates) > 0 && selectable(t.intent) && !d.isNewSearch(ctx, t) {
			resp, ok, err := d.selectCandidate(ctx, t)
			if err != nil || ok {
				return resp, err
			}
			if t.intent == intent.Unknown {
				return Response{
					ReplyText: reply.InvalidSelection(t.sess.Candidates),
					Intent:    t.intent,
				}, nil
			}
		}

		if t.sess.CurrentProduct != nil && t.intent == intent.Purchase && !d.namesOtherProduct(ctx, t) {
			return d.purchase(ctx, t, *t.sess.CurrentProduct)
		}
	}

	h, ok := d.handlers[t.intent]
	if !ok {
		h = d.fallback
	}
	return h(ctx, t)
}

// selectable reports whether a message with this intent may be an answer
// to a numbered list. Greetings and help requests never are.
func selectable(in intent.Intent) bool {
	return in != intent.Greeting && in != intent.Help
}

// isNewSearch reports whether a product question asked while a list is open
// starts a different search: it is ambiguous again, or names a product that
// is not on the list. Such a message is answered as a search, not a pick.
func (d *Dispatcher) isNewSearch(ctx context.Context, t *turn) bool {
	if t.intent == intent.Unknown {
		return false
	}
	matches, ok := d.matchQuery(ctx, t.msg.Text)
	if !ok || len(matches) == 0 {
		return false
	}
	if len(matches) > 1 {
		return true
	}
	for _, c := range t.sess.Candidates {
		if c.ID == matches[0].Product.ID {
			return false
		}
	}
	return true
}

// matchQuery resolves the product words of text against the catalog. ok is
// false when text names no product or the catalog cannot be read.
func (d *Dispatcher) matchQuery(ctx context.Context, text string) ([]search.Match, bool) {
	query, ok := d.productQuery(text)
	if !ok {
		return nil, false
	}
	products, err := d.catalog.List(ctx)
	if err != nil {
		return nil, false
	}
	return d.rank(query, products), true
}

// rank resolves query and narrows a tie between similar names to the
// products it names exactly. A query that is a product's full name picks
// that product. Otherwise, when the query carries numbers, only the matches
// whose name or tags contain all of them are kept, so "iphone 13" does not
// list the iPhone 12.
func (d *Dispatcher) rank(query string, products []catalog.Product) []search.Match {
	matches := d.resolver.Resolve(query, products)
	if len(matches) < 2 {
		return matches
	}

	q := intent.Normalize(query)
	var exact []search.Match
	for _, m := range matches {
		if intent.Normalize(m.Product.Name) == q {
			exact = append(exact, m)
		}
	}
	if len(exact) == 1 {
		return exact
	}

	var numbers []string
	for _, w := range strings.Fields(q) {
		if isNumber(w) {
			numbers = append(numbers, w)
		}
	}
	if len(numbers) == 0 {
		return matches
	}
	var named []search.Match
	for _, m := range matches {
		words := nameWords(m.Product)
		all := true
		for _, n := range numbers {
			if words[n] == 0 {
				all = false
				break
			}
		}
		if all {
			named = append(named, m)
		}
	}
	if len(named) == 0 {
		return matches
	}
	return named
}

func (d *Dispatcher) selectCandidate(ctx context.Context, t *turn) (Response, bool, error) {
	chosen, err := search.ResolveSelection(t.msg.Text, t.sess.Candidates)
	if errors.Is(err, search.ErrInvalidSelection) {
		return Response{}, false, nil
	}
	if err != nil {
		return Response{}, false, err
	}

	fresh, err := d.catalog.Get(ctx, chosen.ID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		t.sess.Reset()
		t.dirty = true
		return Response{ReplyText: reply.NotFound(chosen.Name), Intent: t.intent}, true, nil
	}
	if err != nil {
		return Response{}, false, err
	}

	t.sess.Select(*fresh)
	t.dirty = true
	return Response{
		ReplyText:       reply.ProductDetail(*fresh),
		Intent:          t.intent,
		ResolvedProduct: fresh,
	}, true, nil
}

// namesOtherProduct reports whether a purchase message names products other
// than the one already held, as in "buy the phone charger" while discussing
// sneakers. Such a message is resolved afresh instead of buying the held one.
func (d *Dispatcher) namesOtherProduct(ctx context.Context, t *turn) bool {
	matches, ok := d.matchQuery(ctx, t.msg.Text)
	if !ok || len(matches) == 0 {
		return false
	}
	for _, m := range matches {
		if m.Product.ID == t.sess.CurrentProduct.ID {
			return false
		}
	}
	return true
}

func (d *Dispatcher) confirmPayment(ctx context.Context, t *turn) (Response, error) {
	pending, err := d.pendingOrder(ctx, t)
	if errors.Is(err, order.ErrOrderNotFound) {
		return Response{ReplyText: reply.NoPendingOrder(), Intent: t.intent}, nil
	}
	if err != nil {
		return Response{}, err
	}

	paid, err := d.orders.Pay(ctx, pending.ID)
	switch {
	case errors.Is(err, order.ErrConcurrentTransition), errors.Is(err, order.ErrOrderAlreadyPaid):
		return Response{ReplyText: reply.NoPendingOrder(), Intent: t.intent}, nil
	case err != nil:
		return Response{}, err
	}

	if err := history.Record(ctx, d.history, history.KindPaid, *paid, *paid.PaidAt); err != nil {
		d.logger.Warn("customer history append failed",
			zap.String("order_id", paid.ID), zap.Error(err))
	}

	if t.sess.PendingOrderID != "" || t.sess.CurrentProduct != nil {
		t.sess.ClearPending()
		t.dirty = true
	}
	return Response{ReplyText: reply.Paid(*paid), Intent: t.intent, OrderID: paid.ID}, nil
}

// pendingOrder prefers the order recorded on the session and falls back to
// the customer's latest pending order.
func (d *Dispatcher) pendingOrder(ctx context.Context, t *turn) (*order.Order, error) {
	if id := t.sess.PendingOrderID; id != "" {
		o, err := d.orders.Get(ctx, id)
		switch {
		case err == nil && o.Status == order.StatusPending:
			return o, nil
		case err != nil && !errors.Is(err, order.ErrOrderNotFound):
			return nil, err
		}
	}
	return d.orders.LatestPending(ctx, t.msg.CustomerID)
}

func (d *Dispatcher) greet(ctx context.Context, t *turn) (Response, error) {
	if t.sess.State() != session.StateIdle || t.sess.QueryText != "" {
		t.sess.Reset()
		t.dirty = true
	}

	entries, err := d.history.ListByCustomer(ctx, t.msg.CustomerID)
	if err != nil {
		d.logger.Warn("customer history unavailable", zap.String("customer_id", t.msg.CustomerID), zap.Error(err))
		return Response{ReplyText: reply.Greeting(), Intent: t.intent}, nil
	}
	return Response{ReplyText: reply.ReturningGreeting(entries), Intent: t.intent}, nil
}

func (d *Dispatcher) help(_ context.Context, t *turn) (Response, error) {
	return Response{ReplyText: reply.Help(), Intent: t.intent}, nil
}

// lookup answers price, availability and purchase messages by resolving the
// product they name.
func (d *Dispatcher) lookup(ctx context.Context, t *turn) (Response, error) {
	query, ok := d.productQuery(t.msg.Text)
	if !ok {
		if held := t.sess.CurrentProduct; held != nil && t.intent != intent.Purchase {
			return d.describe(ctx, t, held.ID)
		}
		if t.intent == intent.Purchase {
			return Response{ReplyText: reply.PurchaseNoContext(), Intent: t.intent}, nil
		}
		return Response{ReplyText: reply.AskProduct(), Intent: t.intent}, nil
	}
	return d.resolve(ctx, t, query, t.intent)
}

// fallback gives an unclassified message one more chance as a product
// search before admitting it was not understood.
func (d *Dispatcher) fallback(ctx context.Context, t *turn) (Response, error) {
	query := intent.Normalize(t.msg.Text)
	if query == "" {
		return Response{ReplyText: reply.Unknown(), Intent: intent.Unknown}, nil
	}
	products, err := d.catalog.List(ctx)
	if err != nil {
		return Response{}, err
	}
	if len(d.rank(query, products)) == 0 {
		return Response{ReplyText: reply.Unknown(), Intent: intent.Unknown}, nil
	}
	return d.resolve(ctx, t, query, intent.AvailabilityCheck)
}

func (d *Dispatcher) resolve(ctx context.Context, t *turn, query string, label intent.Intent) (Response, error) {
	products, err := d.catalog.List(ctx)
	if err != nil {
		return Response{}, err
	}
	matches := d.rank(query, products)

	switch {
	case len(matches) == 0:
		return Response{ReplyText: reply.NotFound(query), Intent: label}, nil

	case len(matches) == 1:
		p := matches[0].Product
		if label == intent.Purchase {
			return d.purchase(ctx, t, p)
		}
		d.hold(t, p)
		return Response{ReplyText: reply.ProductDetail(p), Intent: label, ResolvedProduct: &p}, nil

	default:
		if len(matches) > d.maxCandidates {
			matches = matches[:d.maxCandidates]
		}
		candidates := make([]catalog.Product, len(matches))
		for i, m := range matches {
			candidates[i] = m.Product
		}
		t.sess.SetCandidates(query, candidates)
		t.dirty = true
		return Response{ReplyText: reply.Candidates(query, candidates), Intent: label}, nil
	}
}

// hold makes p the product under discussion, with p as the only candidate.
func (d *Dispatcher) hold(t *turn, p catalog.Product) {
	t.sess.Select(p)
	t.sess.Candidates = []catalog.Product{p}
	t.dirty = true
}

func (d *Dispatcher) describe(ctx context.Context, t *turn, productID string) (Response, error) {
	p, err := d.catalog.Get(ctx, productID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		name := t.sess.CurrentProduct.Name
		t.sess.Reset()
		t.dirty = true
		return Response{ReplyText: reply.NotFound(name), Intent: t.intent}, nil
	}
	if err != nil {
		return Response{}, err
	}
	return Response{ReplyText: reply.ProductDetail(*p), Intent: t.intent, ResolvedProduct: p}, nil
}

// purchase runs the saga for p. The session only changes when the purchase
// succeeds, so a refused purchase leaves the held product as it was.
func (d *Dispatcher) purchase(ctx context.Context, t *turn, p catalog.Product) (Response, error) {
	qty := t.sess.Quantity
	if n, ok := parseQuantity(t.msg.Text, p); ok {
		qty = n
	}
	if qty <= 0 {
		qty = 1
	}

	res, err := d.purchaser.Purchase(ctx, purchase.Request{
		CustomerID: t.msg.CustomerID,
		ProductID:  p.ID,
		Quantity:   qty,
	})
	if err != nil {
		return d.purchaseFailed(ctx, t, p, qty, err)
	}

	d.hold(t, res.Product)
	t.sess.Quantity = qty
	t.sess.SetPendingOrder(res.Order.ID)

	resp := Response{
		Intent:          intent.Purchase,
		ResolvedProduct: &res.Product,
		OrderID:         res.Order.ID,
	}
	switch res.Payment.Method {
	case payment.MethodBankTransfer:
		resp.ReplyText = reply.BankTransfer(res.Product.Name, *res.Payment.Bank, res.Order.ID, res.Order.Total)
	default:
		resp.PaymentLink = res.Payment.Link
		resp.ReplyText = reply.PaymentLink(res.Product.Name, res.Payment.Link, res.Order.Total)
	}
	return resp, nil
}

func (d *Dispatcher) purchaseFailed(ctx context.Context, t *turn, p catalog.Product, qty int, err error) (Response, error) {
	resp := Response{Intent: intent.Purchase}
	log := d.logger.With(
		zap.String("customer_id", t.msg.CustomerID),
		zap.String("product_id", p.ID),
		zap.Int("quantity", qty))

	switch {
	case errors.Is(err, purchase.ErrInsufficientStock):
		if fresh, getErr := d.catalog.Get(ctx, p.ID); getErr == nil {
			p = *fresh
		}
		resp.ResolvedProduct = &p
		if p.StockLevel <= 0 {
			resp.ReplyText = reply.OutOfStock(p)
		} else {
			resp.ReplyText = reply.NotEnoughStock(p, qty)
		}
	case errors.Is(err, catalog.ErrProductNotFound):
		resp.ReplyText = reply.NotFound(p.Name)
		if t.sess.CurrentProduct != nil && t.sess.CurrentProduct.ID == p.ID {
			t.sess.Reset()
			t.dirty = true
		}
	case errors.Is(err, purchase.ErrQuotaExceeded):
		resp.ReplyText = reply.QuotaExceeded()
	case errors.Is(err, purchase.ErrOrderPersistenceFailed):
		log.Warn("purchase failed", zap.Error(err))
		resp.ReplyText = reply.OrderCreationFailed()
	case errors.Is(err, purchase.ErrPaymentLinkFailed):
		log.Warn("purchase failed", zap.Error(err))
		resp.ReplyText = reply.PaymentLinkFailed()
	default:
		if ctx.Err() != nil {
			return Response{}, err
		}
		log.Error("purchase failed", zap.Error(err))
		resp.ReplyText = reply.Failure()
	}
	return resp, nil
}

// productQuery extracts the product words of a message. Numbers stay in
// since they are often part of a name, as in "iphone 13"; a message of
// numbers alone names no product.
func (d *Dispatcher) productQuery(text string) (string, bool) {
	query, ok := d.classifier.ExtractProductQuery(text)
	if !ok {
		return "", false
	}
	for _, w := range strings.Fields(query) {
		if !isNumber(w) {
			return query, true
		}
	}
	return "", false
}

// parseQuantity finds the first whole number in a message that is not part
// of p's name or tags. A number written more often than the name carries it
// still counts, so "buy 13 iphone 13" is thirteen phones.
func parseQuantity(text string, p catalog.Product) (int, bool) {
	named := nameWords(p)
	for _, w := range strings.Fields(intent.Normalize(text)) {
		n, err := strconv.Atoi(w)
		if err != nil {
			continue
		}
		if named[w] > 0 {
			named[w]--
			continue
		}
		if n >= 1 && n <= maxTurnQuantity {
			return n, true
		}
		return 0, false
	}
	return 0, false
}

// nameWords counts the words of p's name and tags.
func nameWords(p catalog.Product) map[string]int {
	words := make(map[string]int)
	for _, w := range strings.Fields(intent.Normalize(p.Name)) {
		words[w]++
	}
	for _, tag := range p.Tags {
		for _, w := range strings.Fields(intent.Normalize(tag)) {
			if words[w] == 0 {
				words[w] = 1
			}
		}
	}
	return words
}

func isNumber(w string) bool {
	_, err := strconv.Atoi(w)
	return err == nil
}

func (d *Dispatcher) failure(ctx context.Context, in intent.Intent) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	return Response{ReplyText: reply.Failure(), Intent: in, State: session.StateIdle}, nil
}

func (d *Dispatcher) enrich(ctx context.Context, customerID, text string) string {
	out, err := d.enricher.Enrich(ctx, customerID, text)
	if err != nil || strings.TrimSpace(out) == "" {
		if err != nil {
			d.logger.Warn("reply enrichment failed", zap.Error(err))
		}
		return text
	}
	return out
}
