package platform

import (
	"context"
	"fmt"

	"github.com/yusufpapurcu/wmi"
)

type win32Product struct {
	Name              string
	Vendor            string
	InstallLocation   string
	IdentifyingNumber string
}

// WMIProducts is the native ProductSource. Querying Win32_Product is slow
// (it validates every MSI package), so the query runs in the background and
// is abandoned when ctx is done.
type WMIProducts struct{}

// Products lists installed MSI products.
func (WMIProducts) Products(ctx context.Context) ([]Product, error) {
	type result struct {
		rows []win32Product
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		var rows []win32Product
		err := wmi.Query("SELECT Name, Vendor, InstallLocation, IdentifyingNumber FROM Win32_Product", &rows)
		ch <- result{rows, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("query Win32_Product: %w", ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("query Win32_Product: %w", res.err)
		}
		out := make([]Product, 0, len(res.rows))
		for _, r := range res.rows {
			out = append(out, Product(r))
		}
		return out, nil
	}
}
