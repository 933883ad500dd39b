package edgar

// conceptMap translates us-gaap taxonomy tags into canonical concept
// names. Tags missing here pass through under their taxonomy name so
// no reported fact is silently dropped.
var conceptMap = map[string]string{
	"Revenues":                                                                      "Revenue",
	"RevenueFromContractWithCustomerExcludingAssessedTax":                           "Revenue",
	"SalesRevenueNet":                                                               "Revenue",
	"CostOfRevenue":                                                                 "CostOfRevenue",
	"CostOfGoodsAndServicesSold":                                                    "CostOfRevenue",
	"GrossProfit":                                                                   "GrossProfit",
	"OperatingIncomeLoss":                                                           "OperatingIncome",
	"NetIncomeLoss":                                                                 "NetIncome",
	"EarningsPerShareBasic":                                                         "EPSBasic",
	"EarningsPerShareDiluted":                                                       "EPSDiluted",
	"Assets":                                                                        "TotalAssets",
	"Liabilities":                                                                   "TotalLiabilities",
	"StockholdersEquity":                                                            "StockholdersEquity",
	"CashAndCashEquivalentsAtCarryingValue":                                         "CashAndEquivalents",
	"LongTermDebt":                                                                  "LongTermDebt",
	"LongTermDebtNoncurrent":                                                        "LongTermDebt",
	"NetCashProvidedByUsedInOperatingActivities":                                    "OperatingCashFlow",
	"NetCashProvidedByUsedInInvestingActivities":                                    "InvestingCashFlow",
	"NetCashProvidedByUsedInFinancingActivities":                                    "FinancingCashFlow",
	"PaymentsToAcquirePropertyPlantAndEquipment":                                    "CapitalExpenditures",
	"ResearchAndDevelopmentExpense":                                                 "ResearchAndDevelopment",
	"SellingGeneralAndAdministrativeExpense":                                        "SGAExpense",
	"CommonStockSharesOutstanding":                                                  "SharesOutstanding",
	"WeightedAverageNumberOfSharesOutstandingBasic":                                 "WeightedAverageShares",
	"WeightedAverageNumberOfDilutedSharesOutstanding":                               "WeightedAverageSharesDiluted",
	"IncomeTaxExpenseBenefit":                                                       "IncomeTaxExpense",
	"InterestExpense":                                                               "InterestExpense",
	"Inventory":                                                                     "Inventory",
	"InventoryNet":                                                                  "Inventory",
	"AccountsReceivableNetCurrent":                                                  "AccountsReceivable",
	"PropertyPlantAndEquipmentNet":                                                  "PropertyPlantEquipment",
	"Goodwill":                                                                      "Goodwill",
	"RetainedEarningsAccumulatedDeficit":                                            "RetainedEarnings",
	"OperatingExpenses":                                                             "OperatingExpenses",
	"IncomeLossFromContinuingOperationsBeforeIncomeTaxesExtraordinaryItemsNoncontrollingInterest": "PretaxIncome",
}

// canonicalConcept maps one us-gaap tag to its canonical name.
func canonicalConcept(tag string) string {
	if c, ok := conceptMap[tag]; ok {
		return c
	}
	return tag
}

// reverseConcepts returns every us-gaap tag that can feed a canonical
// concept, used to narrow companyfacts parsing when the caller asked
// for specific concepts.
func reverseConcepts(canonical []string) map[string]bool {
	if len(canonical) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(canonical))
	for _, c := range canonical {
		wanted[c] = true
	}
	tags := make(map[string]bool)
	known := make(map[string]bool, len(conceptMap))
	for tag, c := range conceptMap {
		known[c] = true
		if wanted[c] {
			tags[tag] = true
		}
	}
	// Names outside the canonical vocabulary are taken as raw
	// taxonomy tags.
	for _, c := range canonical {
		if !known[c] {
			tags[c] = true
		}
	}
	return tags
}
