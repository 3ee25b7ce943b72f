package index

import (
	"github.com/Aman-CERP/feedsearch/internal/entity"
	"github.com/Aman-CERP/feedsearch/internal/store"
)

// pending is the queue work derived from one entity event.
type pending struct {
	ids   []int64
	event store.IndexEvent
}

// classify applies the visibility filter to ev. It reports false when the
// event cannot change the index.
//
//	created visible            -> Persisted
//	created hidden             -> nothing
//	updated hidden -> visible  -> Persisted
//	updated visible -> visible -> Updated
//	updated visible -> hidden  -> Removed
//	updated hidden -> hidden   -> nothing
//	deleted                    -> Removed
//	label/bookmark changes     -> Updated for every affected article
//	bin deleted                -> Removed for every article it held
func classify(ev entity.Event) (pending, bool) {
	switch ev.Kind {
	case entity.ArticleCreated:
		if !ev.After.Visible() {
			return pending{}, false
		}
		return pending{ids: []int64{ev.ID}, event: store.EventPersisted}, true

	case entity.ArticleUpdated:
		was, is := ev.Before.Visible(), ev.After.Visible()
		switch {
		case is && !was:
			return pending{ids: []int64{ev.ID}, event: store.EventPersisted}, true
		case is:
			return pending{ids: []int64{ev.ID}, event: store.EventUpdated}, true
		case was:
			return pending{ids: []int64{ev.ID}, event: store.EventRemoved}, true
		default:
			return pending{}, false
		}

	case entity.ArticleDeleted:
		return pending{ids: []int64{ev.ID}, event: store.EventRemoved}, true

	case entity.LabelRenamed, entity.LabelDeleted,
		entity.BookmarkCreated, entity.BookmarkDeleted, entity.BookmarkRelinked:
		if len(ev.Affected) == 0 {
			return pending{}, false
		}
		return pending{ids: ev.Affected, event: store.EventUpdated}, true

	case entity.BinDeleted:
		if len(ev.Affected) == 0 {
			return pending{}, false
		}
		return pending{ids: ev.Affected, event: store.EventRemoved}, true
	}
	return pending{}, false
}
