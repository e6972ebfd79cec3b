package composition

// Validate scans every layer for this content type and returns one
// CompositionValidationError per violation of spec §3's layering
// invariants: a pack/project file introducing a name a core entity already
// owns (shadowing, unless MergeSameName), or an overlay file with no
// earlier-layer target. Discovery and Compose stay permissive (silently
// excluding or accepting per MergeSameName) so routine composition never
// fails unexpectedly; Validate is the explicit, opt-in strict pass a
// "compose check" or CI step calls before trusting a pack.
func (r *ComposableRegistry[T]) Validate(packs []string) []*CompositionValidationError {
	if packs == nil {
		packs = r.activePacks()
	}
	bd, pd := r.bundledDiscovery(), r.projectPacksDiscovery()

	var errs []*CompositionValidationError
	coreEntities := bd.DiscoverCore()
	seen := map[string]bool{}
	for n := range coreEntities {
		seen[n] = true
	}

	checkNew := func(entities map[string]DiscoveredEntity, label string) {
		for _, name := range sortedKeys(entities) {
			if seen[name] && !r.MergeSameName {
				errs = append(errs, &CompositionValidationError{
					Entity: name, Layer: label,
					Reason: "entity shadows an existing core entity",
				})
			}
		}
	}
	checkOverlay := func(entities map[string]DiscoveredEntity, label string) {
		for _, name := range sortedKeys(entities) {
			if !seen[name] {
				errs = append(errs, &CompositionValidationError{
					Entity: name, Layer: label,
					Reason: "overlay has no target entity in an earlier layer",
				})
			}
		}
	}

	for _, pack := range packs {
		label := "pack:" + pack

		bdNew := bd.rawPackNew(pack)
		checkNew(bdNew, label)
		for n := range bdNew {
			seen[n] = true
		}
		checkOverlay(bd.rawPackOverlays(pack), label)

		pdNew := pd.rawPackNew(pack)
		checkNew(pdNew, label)
		for n := range pdNew {
			seen[n] = true
		}
		checkOverlay(pd.rawPackOverlays(pack), label)
	}

	projNew := bd.rawProjectNew()
	checkNew(projNew, "project")
	for n := range projNew {
		seen[n] = true
	}
	checkOverlay(bd.rawProjectOverlays(), "project")

	return errs
}
