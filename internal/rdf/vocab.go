package rdf

// Namespace IRIs for the vocabularies the converter knows about.
const (
	NSRDF  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NSRDFS = "http://www.w3.org/2000/01/rdf-schema#"
	NSXSD  = "http://www.w3.org/2001/XMLSchema#"
	NSOWL  = "http://www.w3.org/2002/07/owl#"
	NSSKOS = "http://www.w3.org/2004/02/skos/core#"
	NSDCT  = "http://purl.org/dc/terms/"
	NSDCAT = "http://www.w3.org/ns/dcat#"
	NSFOAF = "http://xmlns.com/foaf/0.1/"
	NSQB   = "http://purl.org/linked-data/cube#"
)

// Datatype IRIs.
const (
	XSDString     = NSXSD + "string"
	XSDBoolean    = NSXSD + "boolean"
	XSDInteger    = NSXSD + "integer"
	XSDDecimal    = NSXSD + "decimal"
	XSDDouble     = NSXSD + "double"
	XSDDate       = NSXSD + "date"
	XSDDateTime   = NSXSD + "dateTime"
	XSDTime       = NSXSD + "time"
	XSDGYearMonth = NSXSD + "gYearMonth"
	XSDGYear      = NSXSD + "gYear"
	RDFLangString = NSRDF + "langString"
)

// Property IRIs used by built-in template behaviour.
const (
	RDFType        = NSRDF + "type"
	RDFSLabel      = NSRDFS + "label"
	SKOSBroader    = NSSKOS + "broader"
	SKOSNarrower   = NSSKOS + "narrower"
	SKOSTopConcept = NSSKOS + "hasTopConcept"
)
