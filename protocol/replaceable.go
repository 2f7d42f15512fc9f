package protocol

// CollapseReplaceable keeps only the latest revision of each parameterized
// replaceable event, identified by (pubkey, kind, d tag). Ties on created_at
// go to the lexically lowest ID. Events of other kinds pass through. The
// relative order of the surviving events is preserved.
func CollapseReplaceable(events []*Event) []*Event {
	type address struct {
		pubkey string
		kind   int
		d      string
	}

	winners := make(map[address]*Event)
	for _, ev := range events {
		if !IsParameterizedReplaceable(ev.Kind) {
			continue
		}
		d, _ := TagValue(ev, "d")
		addr := address{pubkey: ev.PubKey, kind: ev.Kind, d: d}
		cur, ok := winners[addr]
		if !ok || newerRevision(ev, cur) {
			winners[addr] = ev
		}
	}

	out := make([]*Event, 0, len(events))
	for _, ev := range events {
		if !IsParameterizedReplaceable(ev.Kind) {
			out = append(out, ev)
			continue
		}
		d, _ := TagValue(ev, "d")
		if winners[address{pubkey: ev.PubKey, kind: ev.Kind, d: d}] == ev {
			out = append(out, ev)
		}
	}
	return out
}

func newerRevision(a, b *Event) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt > b.CreatedAt
	}
	return a.ID < b.ID
}
