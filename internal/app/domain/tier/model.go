package tier

// Tier is the cosmetic reward category attached to a wish.
type Tier string

const (
	Apex        Tier = "APEX"
	Elite       Tier = "ELITE"
	Contributor Tier = "CONTRIBUTOR"
	Common      Tier = "COMMON"
)

// Sequence moduli, checked in priority order.
const (
	ApexEvery        int64 = 1_500_000
	EliteEvery       int64 = 10_000
	ContributorEvery int64 = 500
)

// Avatar is the reward handed back with a wish.
type Avatar struct {
	Tier       Tier `json:"tier"`
	RedeemUpTo int  `json:"redeemUpTo"`
}

// RedeemUpTo returns the nominal redeemable value for t.
func (t Tier) RedeemUpTo() int {
	switch t {
	case Apex:
		return 100
	case Elite:
		return 50
	case Contributor:
		return 20
	default:
		return 0
	}
}

