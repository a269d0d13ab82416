package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog"
	"github.com/fjod/go_storefront/internal/domain"
	"github.com/fjod/go_storefront/internal/money"
)

type Submitter interface {
	Submit(ctx context.Context, req domain.OrderRequest) (*domain.OrderConfirmation, error)
}

type screen int

const (
	screenCatalog screen = iota
	screenCart
	screenCheckout
	screenConfirmation
)

var sortOrders = []catalog.SortOrder{
	catalog.SortNewest,
	catalog.SortPriceLow,
	catalog.SortPriceHigh,
	catalog.SortName,
}

type productsLoaded struct {
	query    string
	products []domain.Product
	err      error
}

type orderResult struct {
	items        []domain.OrderRequestItem
	confirmation *domain.OrderConfirmation
	err          error
}

// Model is the terminal storefront: a searchable catalog, the cart and a
// checkout form. It owns no state the cart store already holds.
type Model struct {
	ctx    context.Context
	feed   *catalog.Feed
	cart   *cart.Store
	orders Submitter

	screen    screen
	products  []domain.Product
	selected  int
	query     string
	searching bool
	sortIdx   int
	loading   bool

	cartSel int
	form    *checkoutForm

	confirmation *domain.OrderConfirmation
	busy         bool
	status       string
}

func New(ctx context.Context, feed *catalog.Feed, store *cart.Store, orders Submitter) Model {
	return Model{
		ctx:    ctx,
		feed:   feed,
		cart:   store,
		orders: orders,
		status: "Ready",
	}
}

func (m Model) Init() tea.Cmd {
	return m.load("")
}

func (m Model) load(query string) tea.Cmd {
	feed, ctx := m.feed, m.ctx
	return func() tea.Msg {
		products, err := feed.Load(ctx, query)
		return productsLoaded{query: query, products: products, err: err}
	}
}

func (m Model) submit(req domain.OrderRequest) tea.Cmd {
	orders, ctx := m.orders, m.ctx
	return func() tea.Msg {
		conf, err := orders.Submit(ctx, req)
		return orderResult{items: req.Items, confirmation: conf, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case productsLoaded:
		return m.applyProducts(msg), nil
	case orderResult:
		return m.applyOrder(msg), nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.feed.Cancel()
			return m, tea.Quit
		}
		switch m.screen {
		case screenCatalog:
			return m.updateCatalog(msg)
		case screenCart:
			return m.updateCart(msg)
		case screenCheckout:
			return m.updateCheckout(msg)
		case screenConfirmation:
			m.screen = screenCatalog
			m.confirmation = nil
			return m, nil
		}
	}
	return m, nil
}

func (m Model) applyProducts(msg productsLoaded) Model {
	if errors.Is(msg.err, catalog.ErrStale) || msg.query != m.query {
		return m
	}
	m.loading = false
	switch {
	case errors.Is(msg.err, catalog.ErrNoCatalog):
		m.products = nil
		m.status = "Catalog unavailable"
	case msg.err != nil:
		m.status = fmt.Sprintf("Loading failed: %v", msg.err)
	default:
		m.products = catalog.SortProducts(msg.products, sortOrders[m.sortIdx])
		m.status = fmt.Sprintf("%d products", len(m.products))
	}
	if m.selected >= len(m.products) {
		m.selected = max(0, len(m.products)-1)
	}
	return m
}

func (m Model) applyOrder(msg orderResult) Model {
	m.busy = false
	if errors.Is(msg.err, domain.ErrUnconfirmed) {
		m.status = "Order received but not confirmed, please do not order again"
		return m
	}
	if msg.err != nil {
		m.status = fmt.Sprintf("Order failed: %v", msg.err)
		return m
	}
	m.cart.Deduct(m.ctx, msg.items)
	m.cartSel = 0
	m.form = nil
	m.confirmation = msg.confirmation
	m.screen = screenConfirmation
	m.status = "Order placed"
	return m
}

func (m Model) updateCatalog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		return m.updateSearch(msg)
	}
	switch msg.String() {
	case "q":
		m.feed.Cancel()
		return m, tea.Quit
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < len(m.products)-1 {
			m.selected++
		}
	case "/":
		m.searching = true
	case "s":
		m.sortIdx = (m.sortIdx + 1) % len(sortOrders)
		m.products = catalog.SortProducts(m.products, sortOrders[m.sortIdx])
	case "r":
		m.loading = true
		return m, m.load(m.query)
	case "enter", "a":
		if len(m.products) == 0 {
			return m, nil
		}
		p := m.products[m.selected]
		m.cart.AddItem(m.ctx, p, 1)
		m.status = fmt.Sprintf("Added %s (%d in cart)", p.Title, m.cart.Quantity(p.ID))
	case "c":
		if err := m.cart.Reload(m.ctx); err != nil {
			m.status = fmt.Sprintf("Cart unavailable: %v", err)
		}
		m.cart.SetOpen(true)
		m.screen = screenCart
		m.cartSel = 0
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.searching = false
		return m, nil
	case tea.KeyBackspace:
		if m.query == "" {
			return m, nil
		}
		r := []rune(m.query)
		m.query = string(r[:len(r)-1])
	case tea.KeySpace:
		m.query += " "
	case tea.KeyRunes:
		m.query += string(msg.Runes)
	default:
		return m, nil
	}
	m.loading = true
	m.selected = 0
	return m, m.load(m.query)
}

func (m Model) updateCart(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	lines := m.cart.Lines()
	switch msg.String() {
	case "esc", "b":
		m.cart.SetOpen(false)
		m.screen = screenCatalog
	case "up", "k":
		if m.cartSel > 0 {
			m.cartSel--
		}
	case "down", "j":
		if m.cartSel < len(lines)-1 {
			m.cartSel++
		}
	case "+", "=":
		if len(lines) > 0 {
			l := lines[m.cartSel]
			m.cart.UpdateQuantity(m.ctx, l.Product.ID, min(l.Quantity+1, domain.MaxQuantity))
		}
	case "-":
		if len(lines) > 0 {
			l := lines[m.cartSel]
			m.cart.UpdateQuantity(m.ctx, l.Product.ID, l.Quantity-1)
		}
	case "d":
		if len(lines) > 0 {
			m.cart.RemoveItem(m.ctx, lines[m.cartSel].Product.ID)
		}
	case "x":
		m.cart.Clear(m.ctx)
	case "o", "enter":
		if len(lines) == 0 {
			m.status = "Cart is empty"
			return m, nil
		}
		m.form = newCheckoutForm()
		m.screen = screenCheckout
	}
	if n := len(m.cart.Lines()); m.cartSel >= n {
		m.cartSel = max(0, n-1)
	}
	return m, nil
}

func (m Model) updateCheckout(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	switch msg.Type {
	case tea.KeyEsc:
		m.screen = screenCart
		return m, nil
	case tea.KeyEnter:
		req := domain.CartOrderRequest(m.form.customer(), m.cart.Lines())
		if err := req.Validate(); err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				m.form.errors = verr.Fields
			}
			m.status = "Please fix the highlighted fields"
			return m, nil
		}
		m.form.errors = nil
		m.busy = true
		m.status = "Submitting order..."
		return m, m.submit(req)
	}
	m.form.handleKey(msg)
	return m, nil
}

func (m Model) View() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Storefront  [cart: %d items, %s]\n\n", m.cart.ItemCount(), money.FormatEUR(m.cart.TotalCents()))

	switch m.screen {
	case screenCatalog:
		m.viewCatalog(b)
	case screenCart:
		m.viewCart(b)
	case screenCheckout:
		m.form.view(b)
		fmt.Fprintf(b, "\nTotal: %s\n", money.FormatEUR(m.cart.TotalCents()))
		fmt.Fprintln(b, "\nControls: tab/up/down move, enter submit, esc back")
	case screenConfirmation:
		m.viewConfirmation(b)
	}

	fmt.Fprintf(b, "\nStatus: %s\n", m.status)
	return b.String()
}

func (m Model) viewCatalog(b *strings.Builder) {
	search := m.query
	if m.searching {
		search += "_"
	}
	fmt.Fprintf(b, "Search: %s   Sort: %s\n", search, sortOrders[m.sortIdx])
	if m.loading {
		fmt.Fprintln(b, "Loading...")
	}
	fmt.Fprintln(b, "")
	if len(m.products) == 0 && !m.loading {
		fmt.Fprintln(b, "  No products found")
	}
	for i, p := range m.products {
		marker := " "
		if i == m.selected {
			marker = ">"
		}
		qty := ""
		if n := m.cart.Quantity(p.ID); n > 0 {
			qty = fmt.Sprintf("  (x%d)", n)
		}
		fmt.Fprintf(b, " %s %-30s %10s%s\n", marker, p.Title, money.FormatEUR(p.PriceCents), qty)
	}
	fmt.Fprintln(b, "\nControls: up/down select, enter add, / search, s sort, r reload, c cart, q quit")
}

func (m Model) viewCart(b *strings.Builder) {
	lines := m.cart.Lines()
	if len(lines) == 0 {
		fmt.Fprintln(b, "Your cart is empty")
	}
	for i, l := range lines {
		marker := " "
		if i == m.cartSel {
			marker = ">"
		}
		fmt.Fprintf(b, " %s %-30s %3d x %10s = %10s\n", marker, l.Product.Title, l.Quantity,
			money.FormatEUR(l.Product.PriceCents), money.FormatEUR(l.SubtotalCents()))
	}
	fmt.Fprintf(b, "\nTotal: %s\n", money.FormatEUR(m.cart.TotalCents()))
	fmt.Fprintln(b, "\nControls: +/- quantity, d remove, x clear, o checkout, esc back")
}

func (m Model) viewConfirmation(b *strings.Builder) {
	c := m.confirmation
	if c == nil {
		return
	}
	fmt.Fprintf(b, "Thank you, %s!\n", c.CustomerName)
	fmt.Fprintf(b, "Order %s (%s)\n", c.ID, c.Status)
	for _, item := range c.Items {
		title := item.ProductID
		if item.Product != nil {
			title = item.Product.Title
		}
		fmt.Fprintf(b, "  %-30s x%d\n", title, item.Quantity)
	}
	fmt.Fprintf(b, "Total: %s\n", money.FormatEUR(c.TotalCents))
	if c.Synthetic {
		fmt.Fprintln(b, "The order service is unreachable; we will contact you to confirm.")
	}
	fmt.Fprintln(b, "\nPress any key to continue")
}
