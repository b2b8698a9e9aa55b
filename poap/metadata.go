package poap

import (
	"poap-backend/models"
)

// metadataTags is the fixed tag set attached to every token document.
var metadataTags = []string{"poap", "event", "attendance"}

// BuildMetadata transforms an event record into the metadata document
// served for its tokens. Pure: the same event and canonical URL always
// produce an identical document.
func BuildMetadata(canonicalURL string, event models.Event) models.TokenMetadata {
	return models.TokenMetadata{
		Description: event.Description,
		ExternalURL: canonicalURL,
		HomeURL:     canonicalURL,
		ImageURL:    event.ImageURL,
		Name:        event.Name,
		Year:        event.Year,
		Tags:        metadataTags,
		Attributes: []models.MetadataAttribute{
			{TraitType: "startDate", Value: event.StartDate},
			{TraitType: "endDate", Value: event.EndDate},
			{TraitType: "city", Value: event.City},
			{TraitType: "country", Value: event.Country},
			{TraitType: "eventURL", Value: event.EventURL},
		},
	}
}
