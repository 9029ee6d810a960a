package mintsdk

// ComputeCost prices quantity units of a claim, grouped by payment token. Zero amounts are omitted.
func ComputeCost(state *ClaimState, quantity uint32) (*CostBreakdown, error) {
	if quantity == 0 {
		return nil, invalidParam("quantity must be a positive integer")
	}

	product, err := state.UnitCost.MulInt(uint64(quantity))
	if err != nil {
		return nil, err
	}
	fee, err := state.PlatformFeePerUnit.MulInt(uint64(quantity))
	if err != nil {
		return nil, err
	}

	breakdown := &CostBreakdown{
		PerToken:            make(map[TokenID]Money, 2),
		ProductSubtotal:     product,
		PlatformFeeSubtotal: fee,
	}
	for _, m := range []Money{product, fee} {
		if m.IsZero() {
			continue
		}
		existing, ok := breakdown.PerToken[m.Token()]
		if !ok {
			breakdown.PerToken[m.Token()] = m
			continue
		}
		sum, err := existing.Add(m)
		if err != nil {
			return nil, err
		}
		breakdown.PerToken[m.Token()] = sum
	}
	return breakdown, nil
}
