package fees

// B2C is the M-Pesa business-to-customer charge table used for individual providers.
var B2C = Schedule{
	Name: "b2c",
	Tiers: []Tier{
		{Min: 1, Max: 49, Charge: 0},
		{Min: 50, Max: 100, Charge: 0},
		{Min: 101, Max: 500, Charge: 5},
		{Min: 501, Max: 1000, Charge: 5},
		{Min: 1001, Max: 1500, Charge: 5},
		{Min: 1501, Max: 2500, Charge: 9},
		{Min: 2501, Max: 3500, Charge: 9},
		{Min: 3501, Max: 5000, Charge: 9},
		{Min: 5001, Max: 7500, Charge: 11},
		{Min: 7501, Max: 10000, Charge: 11},
		{Min: 10001, Max: 15000, Charge: 11},
		{Min: 15001, Max: 20000, Charge: 11},
		{Min: 20001, Max: 25000, Charge: 13},
		{Min: 25001, Max: 30000, Charge: 13},
		{Min: 30001, Max: 35000, Charge: 13},
		{Min: 35001, Max: 40000, Charge: 13},
		{Min: 40001, Max: 45000, Charge: 13},
		{Min: 45001, Max: 50000, Charge: 13},
		{Min: 50001, Max: 70000, Charge: 13},
		{Min: 70001, Max: 250000, Charge: 13},
	},
}

// B2B is the M-Pesa business-to-business charge table used for business providers.
var B2B = Schedule{
	Name: "b2b",
	Tiers: []Tier{
		{Min: 1, Max: 49, Charge: 2},
		{Min: 50, Max: 100, Charge: 3},
		{Min: 101, Max: 500, Charge: 8},
		{Min: 501, Max: 1000, Charge: 13},
		{Min: 1001, Max: 1500, Charge: 18},
		{Min: 1501, Max: 2500, Charge: 25},
		{Min: 2501, Max: 3500, Charge: 30},
		{Min: 3501, Max: 5000, Charge: 39},
		{Min: 5001, Max: 7500, Charge: 48},
		{Min: 7501, Max: 10000, Charge: 54},
		{Min: 10001, Max: 15000, Charge: 63},
		{Min: 15001, Max: 20000, Charge: 68},
		{Min: 20001, Max: 25000, Charge: 74},
		{Min: 25001, Max: 30000, Charge: 79},
		{Min: 30001, Max: 35000, Charge: 90},
		{Min: 35001, Max: 40000, Charge: 106},
		{Min: 40001, Max: 45000, Charge: 110},
		{Min: 45001, Max: 50000, Charge: 115},
		{Min: 50001, Max: 70000, Charge: 115},
		{Min: 70001, Max: 150000, Charge: 115},
		{Min: 150001, Max: 250000, Charge: 115},
		{Min: 250001, Max: 500000, Charge: 115},
		{Min: 500001, Max: 1000000, Charge: 115},
		{Min: 1000001, Max: 3000000, Charge: 115},
		{Min: 3000001, Max: 5000000, Charge: 115},
		{Min: 5000001, Max: 20000000, Charge: 115},
		{Min: 20000001, Max: 50000000, Charge: 115},
	},
}
