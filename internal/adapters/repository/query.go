package repository

// rankRange returns ranks start..end (1-based, inclusive) of snap.
func rankRange(snap *Snapshot, start, end int) []Entry {
	n := snap.Len()
	if n == 0 || end < start || start > n || end < 1 {
		return []Entry{}
	}
	from := max(start, 1) - 1
	to := min(end, n) // exclusive
	return snap.appendRange(make([]Entry, 0, to-from), from, to)
}

// neighborhood windows snap around target. The target's position comes from
// its live rank, so it is only approximately centered when a rebuild lands
// between the rank read and the snapshot load.
func neighborhood(snap *Snapshot, target *customer, high, low int) []Entry {
	if target == nil {
		return []Entry{}
	}
	self := target.entry()
	if self.Rank == 0 {
		return []Entry{}
	}
	n := snap.Len()
	idx := self.Rank - 1
	high = min(max(high, 0), n)
	low = min(max(low, 0), n)
	hiFrom := min(max(0, idx-high), n)
	hiTo := min(idx, n)
	loFrom := min(idx+1, n)
	loTo := min(idx+1+low, n)

	out := make([]Entry, 0, (hiTo-hiFrom)+1+(loTo-loFrom))
	out = snap.appendRange(out, hiFrom, hiTo)
	out = append(out, self)
	return snap.appendRange(out, loFrom, loTo)
}
