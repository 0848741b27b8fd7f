package fees

// Calculator splits an order total into the platform fee and the seller share.
// Percent is an integer percentage of the total; 0 disables the fee.
type Calculator struct {
	Percent int64
}

func (c Calculator) Split(total int64) (fee int64, seller int64) {
	if c.Percent <= 0 {
		return 0, total
	}
	fee = total * c.Percent / 100
	return fee, total - fee
}
