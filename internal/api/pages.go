package api

import "net/http"

// Page is one navigable dashboard page. The router resolves it from the request
// path and hands it to the render call; nothing holds a current page.
type Page struct {
	Name  string
	Path  string
	Title string
}

var (
	pageDashboard   = Page{Name: "dashboard", Path: "/", Title: "Sales Overview"}
	pagePerformance = Page{Name: "performance", Path: "/performance", Title: "Model Performance"}
	pageImpact      = Page{Name: "impact", Path: "/impact", Title: "Business Impact"}
	pageData        = Page{Name: "data", Path: "/data", Title: "Data Health"}
)

// Pages lists the pages in navigation order.
func Pages() []Page {
	return []Page{pageDashboard, pagePerformance, pageImpact, pageData}
}

// PageFor resolves a request path.
func PageFor(path string) (Page, bool) {
	for _, p := range Pages() {
		if p.Path == path {
			return p, true
		}
	}
	return Page{}, false
}

type NavItem struct {
	Page
	Active bool
}

func navFor(current Page) []NavItem {
	pages := Pages()
	items := make([]NavItem, len(pages))
	for i, p := range pages {
		items[i] = NavItem{Page: p, Active: p.Name == current.Name}
	}
	return items
}

// PageBase carries what every page template needs.
type PageBase struct {
	Page    Page
	Nav     []NavItem
	Notice  string
	Missing []string
}

func (s *Server) base(p Page) PageBase {
	b := PageBase{
		Page:    p,
		Nav:     navFor(p),
		Missing: s.dataset.Missing,
	}
	if s.dataset.Empty() {
		b.Notice = "No data loaded. Check the sales and forecast sources."
	}
	return b
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	page, ok := PageFor(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	switch page.Name {
	case pageDashboard.Name:
		s.handleDashboard(w, r, page)
	case pagePerformance.Name:
		s.handlePerformance(w, r, page)
	case pageImpact.Name:
		s.handleImpact(w, r, page)
	case pageData.Name:
		s.handleData(w, r, page)
	}
}
