package checkout

import (
	checkoutdto "github.com/angelmondragon/pos-checkout/api/controllers/checkout/dto"
	"github.com/angelmondragon/pos-checkout/internal/cart"
	checkoutsvc "github.com/angelmondragon/pos-checkout/internal/checkout"
)

func newSessionView(view *checkoutsvc.View) checkoutdto.SessionView {
	if view == nil {
		return checkoutdto.SessionView{Lines: []checkoutdto.Line{}}
	}
	lines := make([]checkoutdto.Line, 0, len(view.Lines))
	for _, line := range view.Lines {
		lines = append(lines, newLine(line))
	}
	var customer *checkoutdto.Customer
	if view.Customer != nil {
		c := newCustomer(*view.Customer)
		customer = &c
	}
	return checkoutdto.SessionView{
		SessionID:            view.SessionID,
		State:                view.State,
		Lines:                lines,
		Subtotal:             view.Totals.Subtotal.String(),
		Tax:                  view.Totals.Tax.String(),
		GrandTotal:           view.Totals.GrandTotal.String(),
		TaxRate:              view.Totals.TaxRate.String(),
		LineCount:            view.Totals.LineCount,
		ItemCount:            view.Totals.ItemCount,
		Customer:             customer,
		PaymentMethod:        view.PaymentMethod,
		ProductCount:         view.ProductCount,
		CustomerCount:        view.CustomerCount,
		CustomersUnavailable: view.CustomersUnavailable,
		OpenedAt:             view.OpenedAt,
		UpdatedAt:            view.UpdatedAt,
	}
}

func newLine(line cart.Line) checkoutdto.Line {
	return checkoutdto.Line{
		ProductID:    line.ProductID,
		Name:         line.Name,
		SKU:          line.SKU,
		UnitPrice:    line.UnitPrice.String(),
		Quantity:     line.Quantity,
		LineTotal:    line.Total().String(),
		Stock:        line.Stock,
		ExceedsStock: line.Quantity > line.Stock,
		Warnings:     line.Warnings(),
	}
}

func newProducts(products []cart.Product) []checkoutdto.Product {
	out := make([]checkoutdto.Product, 0, len(products))
	for _, p := range products {
		out = append(out, checkoutdto.Product{
			ID:    p.ID,
			Name:  p.Name,
			SKU:   p.SKU,
			Price: p.Price.String(),
			Stock: p.Stock,
		})
	}
	return out
}

func newCustomer(c cart.Customer) checkoutdto.Customer {
	return checkoutdto.Customer{ID: c.ID, Name: c.Name, Phone: c.Phone}
}

func newCustomers(customers []cart.Customer) []checkoutdto.Customer {
	out := make([]checkoutdto.Customer, 0, len(customers))
	for _, c := range customers {
		out = append(out, newCustomer(c))
	}
	return out
}

func newSubmitResponse(result *checkoutsvc.SubmitResult) checkoutdto.SubmitResponse {
	return checkoutdto.SubmitResponse{
		OrderID:     result.Receipt.OrderID,
		TotalAmount: result.Receipt.TotalAmount.String(),
		SubmittedAt: result.Receipt.SubmittedAt,
		Session:     newSessionView(&result.View),
	}
}
