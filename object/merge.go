package object

// Merge folds every present field of src into o: list/set/map fields
// are concatenated/unioned rather than replaced outright, but every
// other field kind — including struct-typed fields — is replaced
// wholesale when present on src. This matches the generated merge
// method's contract (spec §9 "Supplemented features", grounded in
// backend/python/gen.py's genMergeMethod: every field falls through to
// `self.setX(src.getX())` except LIST/SET/MAP, which extend/update a
// mutable view instead).
func (o *Instance) Merge(src *Instance) {
	o.CheckMutable()
	if src == nil || src.desc != o.desc {
		return
	}
	for _, fd := range o.desc.Fields {
		if !src.Has(fd) {
			continue
		}
		srcVal := src.Get(fd)
		switch sv := srcVal.(type) {
		case *Instance:
			o.Set(fd, sv.ShallowCopy())
		case *List:
			dst, _ := o.values[fd.ID].(*List)
			if dst == nil {
				dst = &List{}
				o.values[fd.ID] = dst
			}
			dst.Elems = append(dst.Elems, sv.Elems...)
		case *Set:
			dst, _ := o.values[fd.ID].(*Set)
			if dst == nil {
				dst = &Set{}
				o.values[fd.ID] = dst
			}
			for _, e := range sv.Elems {
				dup := false
				for _, have := range dst.Elems {
					if valuesEqual(have, e) {
						dup = true
						break
					}
				}
				if !dup {
					dst.Add(e)
				}
			}
		case *Map:
			dst, _ := o.values[fd.ID].(*Map)
			if dst == nil {
				dst = &Map{}
				o.values[fd.ID] = dst
			}
			for _, e := range sv.Entries {
				dst.Set(e.Key, e.Value)
			}
		default:
			o.Set(fd, srcVal)
		}
	}
}
