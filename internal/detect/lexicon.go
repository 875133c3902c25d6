package detect

// Keyword lexicons for the special-category markers. Matching is
// case-insensitive and word-bounded; terms cover Dutch, French, and English
// because client correspondence arrives in all three.

var healthLexicon = []string{
	"diagnose", "diagnosis", "medisch dossier", "dossier médical", "medical record",
	"ziekenhuisopname", "hospitalisation", "hospitalization", "psychiatrisch",
	"psychiatrique", "psychiatric", "arbeidsongeschikt", "invalidité", "disability",
	"kanker", "cancer", "hiv", "aids", "depressie", "dépression", "depression",
	"verslaving", "addiction", "medicatie", "médication", "medication",
	"behandeling bij", "handicap", "zwangerschap", "grossesse", "pregnancy",
}

var criminalLexicon = []string{
	"strafblad", "casier judiciaire", "criminal record", "veroordeling",
	"condamnation", "conviction", "verdachte", "inculpé", "suspect in",
	"strafrechtelijk", "pénalement", "criminal charge", "gevangenisstraf",
	"peine de prison", "prison sentence", "misdrijf", "délit", "felony",
	"parket", "parquet", "aanhouding", "arrestatie", "arrestation",
}

var minorLexicon = []string{
	"minderjarige", "mineur d'âge", "minor child", "jeugdrechtbank",
	"tribunal de la jeunesse", "juvenile court", "voogdij", "tutelle",
	"guardianship", "ouderlijk gezag", "autorité parentale", "parental authority",
	"pleegzorg", "placement familial", "foster care", "jeugdzorg",
	"protection de la jeunesse", "child protection",
}
