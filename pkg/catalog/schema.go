package catalog

const productsFrom = `products p
JOIN institutions i ON i.id = p.institution_id
LEFT JOIN product_types pt ON pt.id = p.product_type_id
LEFT JOIN product_categories pc ON pc.id = pt.category_id`

func detailNumber(key string) string {
	return "(p.details->>'" + key + "')::float8"
}

func defaultTables() []Table {
	return []Table{
		{
			Name:      TableProducts,
			From:      productsFrom,
			BaseWhere: "p.is_active = TRUE",
			Fields: []Field{
				{Name: "productId", Label: "Product ID", Column: "p.id", Kind: KindID},
				{Name: "name", Label: "Product name", Column: "p.name", Kind: KindText,
					Keywords: []string{"product name"}, WeakKeywords: []string{"called"}},
				{Name: "institution", Label: "Institution", Column: "i.name", Kind: KindText,
					Keywords: []string{"bank", "banks", "lender", "lenders", "financial institution", "financial institutions"},
					WeakKeywords: []string{"institution", "institutions", "provider", "providers"}},
				{Name: "productType", Label: "Product type", Column: "pt.name", Kind: KindText,
					Keywords: []string{"product type", "product types"}},
				{Name: "category", Label: "Category", Column: "pc.name", FilterColumn: "CONCAT_WS(' ', pc.name, pt.name)", Kind: KindText,
					WeakKeywords: []string{"category", "categories"}},
				{Name: "description", Label: "Description", Column: "p.description", Kind: KindText},
				{Name: "interestRate", Label: "Interest rate (%)", Column: detailNumber("interestRate"), Kind: KindNumber,
					Keywords: []string{"interest rate", "interest rates", "interest"}, WeakKeywords: []string{"rate", "rates"}},
				{Name: "annualPercentageRate", Label: "APR (%)", Column: detailNumber("annualPercentageRate"), Kind: KindNumber,
					Keywords: []string{"annual percentage rate", "apr"}},
				{Name: "minimumBalance", Label: "Minimum balance", Column: detailNumber("minimumBalance"), Kind: KindNumber,
					Keywords: []string{"minimum balance", "min balance", "minimum deposit", "opening balance", "opening deposit"}},
				{Name: "monthlyFee", Label: "Monthly fee", Column: detailNumber("monthlyFee"), Kind: KindNumber,
					Keywords: []string{"monthly fee", "monthly fees", "maintenance fee"}, WeakKeywords: []string{"fee", "fees", "charges"}},
				{Name: "annualFee", Label: "Annual fee", Column: detailNumber("annualFee"), Kind: KindNumber,
					Keywords: []string{"annual fee", "annual fees", "yearly fee"}, WeakKeywords: []string{"fee", "fees", "charges"}},
				{Name: "originationFee", Label: "Origination fee (%)", Column: detailNumber("originationFee"), Kind: KindNumber,
					Keywords: []string{"origination fee", "processing fee"}, WeakKeywords: []string{"fee", "fees", "charges"}},
				{Name: "loanAmountMin", Label: "Minimum loan amount", Column: detailNumber("loanAmountMin"), Kind: KindNumber,
					Keywords: []string{"minimum loan", "min loan", "loan amount", "loan amounts"}, WeakKeywords: []string{"minimum amount"}},
				{Name: "loanAmountMax", Label: "Maximum loan amount", Column: detailNumber("loanAmountMax"), Kind: KindNumber,
					Keywords: []string{"maximum loan", "max loan", "loan amount", "loan amounts", "borrow up to", "how much can i borrow"},
					WeakKeywords: []string{"maximum amount"}},
				{Name: "termMin", Label: "Minimum term (months)", Column: detailNumber("termMin"), Kind: KindNumber,
					Keywords: []string{"minimum term", "shortest term", "repayment period"}, WeakKeywords: []string{"term", "terms", "tenure"}},
				{Name: "termMax", Label: "Maximum term (months)", Column: detailNumber("termMax"), Kind: KindNumber,
					Keywords: []string{"maximum term", "longest term", "repayment period"}, WeakKeywords: []string{"term", "terms", "tenure"}},
				{Name: "features", Label: "Features", Column: "p.details->>'features'", Kind: KindText,
					WeakKeywords: []string{"features", "feature", "benefits"}},
				{Name: "requirements", Label: "Requirements", Column: "p.details->>'requirements'", Kind: KindText,
					WeakKeywords: []string{"requirements", "requirement", "eligibility", "documents needed", "eligible"}},
				{Name: "isFeatured", Label: "Featured", Column: "p.is_featured", Kind: KindBool,
					WeakKeywords: []string{"featured"}},
			},
			DefaultProjection: []string{"productId", "name", "institution", "productType", "category"},
		},
		{
			Name:      TableInstitutions,
			From:      "institutions i",
			BaseWhere: "i.is_active = TRUE",
			Fields: []Field{
				{Name: "institutionId", Label: "Institution ID", Column: "i.id", Kind: KindID},
				{Name: "name", Label: "Institution name", Column: "i.name", Kind: KindText},
				{Name: "countryCode", Label: "Country", Column: "i.country_code", Kind: KindText},
				{Name: "licenseNumber", Label: "License number", Column: "i.license_number", Kind: KindText},
			},
			DefaultProjection: []string{"institutionId", "name", "countryCode"},
		},
	}
}

func defaultCategories() []Category {
	return []Category{
		{Phrase: "savings account", Term: "savings"},
		{Phrase: "savings accounts", Term: "savings"},
		{Phrase: "savings", Term: "savings"},
		{Phrase: "current account", Term: "current"},
		{Phrase: "checking account", Term: "checking"},
		{Phrase: "fixed deposit", Term: "fixed deposit"},
		{Phrase: "fixed deposits", Term: "fixed deposit"},
		{Phrase: "certificate of deposit", Term: "deposit"},
		{Phrase: "personal loan", Term: "personal loan"},
		{Phrase: "personal loans", Term: "personal loan"},
		{Phrase: "home loan", Term: "home loan"},
		{Phrase: "home loans", Term: "home loan"},
		{Phrase: "housing loan", Term: "home loan"},
		{Phrase: "mortgage", Term: "mortgage"},
		{Phrase: "mortgages", Term: "mortgage"},
		{Phrase: "auto loan", Term: "vehicle"},
		{Phrase: "car loan", Term: "vehicle"},
		{Phrase: "vehicle loan", Term: "vehicle"},
		{Phrase: "education loan", Term: "education"},
		{Phrase: "student loan", Term: "education"},
		{Phrase: "loan", Term: "loan"},
		{Phrase: "loans", Term: "loan"},
		{Phrase: "credit card", Term: "credit card"},
		{Phrase: "credit cards", Term: "credit card"},
		{Phrase: "debit card", Term: "debit card"},
		{Phrase: "leasing", Term: "leasing"},
		{Phrase: "lease", Term: "leasing"},
		{Phrase: "insurance", Term: "insurance"},
		{Phrase: "investment", Term: "investment"},
		{Phrase: "investments", Term: "investment"},
	}
}

func defaultDomainTerms() []string {
	return []string{
		"account", "accounts", "apr", "bank", "banking", "banks", "bond", "bonds", "borrow",
		"borrowing", "budget", "card", "cards", "cash", "credit", "currency", "debit", "debt",
		"deposit", "deposits", "emi", "finance", "financial", "fund", "funds", "income",
		"installment", "instalment", "insurance", "interest", "invest", "investing", "investment",
		"lend", "lender", "lending", "loan", "loans", "money", "mortgage", "overdraft", "pension",
		"remittance", "repay", "repayment", "retirement", "salary", "save", "saving", "savings",
		"stock", "stocks", "tax", "wealth",
	}
}
