package models

// Well-known vocabulary namespaces.
const (
	NamespaceRDF    = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NamespaceRDFS   = "http://www.w3.org/2000/01/rdf-schema#"
	NamespaceOWL    = "http://www.w3.org/2002/07/owl#"
	NamespaceXSD    = "http://www.w3.org/2001/XMLSchema#"
	NamespaceSchema = "https://schema.org/"
)

const (
	RDFType             = NamespaceRDF + "type"
	RDFProperty         = NamespaceRDF + "Property"
	RDFSClass           = NamespaceRDFS + "Class"
	RDFSLabel           = NamespaceRDFS + "label"
	RDFSComment         = NamespaceRDFS + "comment"
	OWLClass            = NamespaceOWL + "Class"
	OWLObjectProperty   = NamespaceOWL + "ObjectProperty"
	OWLDatatypeProperty = NamespaceOWL + "DatatypeProperty"
)

// BuiltinNamespaces are always considered registered.
var BuiltinNamespaces = []string{
	NamespaceRDF,
	NamespaceRDFS,
	NamespaceOWL,
	NamespaceXSD,
	NamespaceSchema,
	"http://schema.org/",
}
