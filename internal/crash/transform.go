package crash

// FilterRoles keeps the victims whose role is pedestrian or bicyclist, in source order.
func FilterRoles(victims []Victim) []Victim {
	out := make([]Victim, 0, len(victims))
	for _, v := range victims {
		if v.Role.Qualifying() {
			out = append(out, v)
		}
	}
	return out
}

// ReduceYoungest keeps, for every case id, the victims whose age equals the youngest age
// recorded for that case. The result preserves source order. Under TieFirst only the first of
// several equally young victims survives.
func ReduceYoungest(victims []Victim, ties TiePolicy) []Victim {
	minAge := make(map[string]int, len(victims))
	for _, v := range victims {
		if cur, ok := minAge[v.CaseID]; !ok || v.Age < cur {
			minAge[v.CaseID] = v.Age
		}
	}

	kept := make(map[string]bool, len(minAge))
	out := make([]Victim, 0, len(minAge))
	for _, v := range victims {
		if v.Age != minAge[v.CaseID] {
			continue
		}
		if ties == TieFirst && kept[v.CaseID] {
			continue
		}
		kept[v.CaseID] = true
		out = append(out, v)
	}
	return out
}

// Join left-joins crashes to victims on case id. Every crash appears in crash order; a crash
// with several matching victims appears once per victim, in victim order.
func Join(crashes []Crash, victims []Victim) []Joined {
	byCase := make(map[string][]int, len(victims))
	for i, v := range victims {
		byCase[v.CaseID] = append(byCase[v.CaseID], i)
	}

	out := make([]Joined, 0, len(crashes))
	for _, c := range crashes {
		matches := byCase[c.CaseID]
		if len(matches) == 0 {
			out = append(out, Joined{Crash: c})
			continue
		}
		for _, i := range matches {
			v := victims[i]
			out = append(out, Joined{Crash: c, Victim: &v})
		}
	}
	return out
}
