package admins

// AllowList is the fixed set of provider user ids allowed admin access.
// It is built once and never modified, so it is safe for concurrent use.
type AllowList struct {
	ids map[int64]struct{}
}

func NewAllowList(providerUserIDs ...int64) AllowList {
	ids := make(map[int64]struct{}, len(providerUserIDs))
	for _, id := range providerUserIDs {
		ids[id] = struct{}{}
	}
	return AllowList{ids: ids}
}

func (a AllowList) Contains(providerUserID int64) bool {
	_, ok := a.ids[providerUserID]
	return ok
}

func (a AllowList) Len() int {
	return len(a.ids)
}
