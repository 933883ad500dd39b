package fmp

// metricFields translates FMP key-metrics/ratios field names into
// canonical concepts. Fields absent here are not surfaced; FMP
// reports far more than the gateway vocabulary covers.
var metricFields = map[string]string{
	"revenuePerShare":           "RevenuePerShare",
	"netIncomePerShare":         "NetIncomePerShare",
	"operatingCashFlowPerShare": "OperatingCashFlowPerShare",
	"freeCashFlowPerShare":      "FreeCashFlowPerShare",
	"bookValuePerShare":         "BookValuePerShare",
	"marketCap":                 "MarketCap",
	"enterpriseValue":           "EnterpriseValue",
	"peRatio":                   "PriceToEarnings",
	"priceToSalesRatio":         "PriceToSales",
	"pbRatio":                   "PriceToBook",
	"evToSales":                 "EVToSales",
	"enterpriseValueOverEBITDA": "EVToEBITDA",
	"debtToEquity":              "DebtToEquity",
	"debtToAssets":              "DebtToAssets",
	"currentRatio":              "CurrentRatio",
	"interestCoverage":          "InterestCoverage",
	"dividendYield":             "DividendYield",
	"payoutRatio":               "PayoutRatio",
	"returnOnTangibleAssets":    "ReturnOnTangibleAssets",
	"roic":                      "ReturnOnInvestedCapital",
	"roe":                       "ReturnOnEquity",
	"grossProfitMargin":         "GrossMargin",
	"operatingProfitMargin":     "OperatingMargin",
	"netProfitMargin":           "NetMargin",
	"assetTurnover":             "AssetTurnover",
	"inventoryTurnover":         "InventoryTurnover",
	"receivablesTurnover":       "ReceivablesTurnover",
	"workingCapital":            "WorkingCapital",
	"tangibleAssetValue":        "TangibleAssetValue",
	"grahamNumber":              "GrahamNumber",
	"earningsYield":             "EarningsYield",
	"freeCashFlowYield":         "FreeCashFlowYield",
}
