package output

import "github.com/crimson-sun/vigil/internal/model"

const defaultPageSize = 100

// Page applies req to events held in storage order and returns one page.
// PageID is the ID of the last event of the previous page; paging forward
// continues after it, paging backward continues before it. Backward pages
// are returned newest first. An unknown PageID, such as an event already
// evicted, yields an empty page.
func Page(events []model.Event, req FetchRequest) []model.Event {
	size := req.PageSize
	if size <= 0 {
		size = defaultPageSize
	}

	start, step := 0, 1
	if !req.Forward {
		start, step = len(events)-1, -1
	}
	if req.PageID != "" {
		found := false
		for i, e := range events {
			if e.ID == req.PageID {
				start, found = i+step, true
				break
			}
		}
		if !found {
			return nil
		}
	}

	var page []model.Event
	for i := start; i >= 0 && i < len(events) && len(page) < size; i += step {
		if req.Matches(events[i]) {
			page = append(page, events[i])
		}
	}
	return page
}
