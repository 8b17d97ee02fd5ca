package extraction

import (
	"strconv"

	"github.com/google/uuid"
)

// EntityNamespace qualifies entity identifiers. It is the RFC 4122 DNS
// namespace, kept for compatibility with identifiers already issued.
var EntityNamespace = uuid.NameSpaceDNS

// RelationshipNamespace qualifies relationship identifiers.
var RelationshipNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:infoextract-cidoc:relationship"))

// EntityID derives the stable identifier for a (ref_id, label) pair.
func EntityID(refID, label string) uuid.UUID {
	return uuid.NewSHA1(EntityNamespace, []byte(refID+":"+label))
}

// RelationshipID derives the identifier of the n-th occurrence of a triple
// within one batch. Repeated triples stay distinct.
func RelationshipID(source uuid.UUID, propertyCode string, target uuid.UUID, n int) uuid.UUID {
	name := source.String() + "|" + propertyCode + "|" + target.String() + "|" + strconv.Itoa(n)
	return uuid.NewSHA1(RelationshipNamespace, []byte(name))
}
