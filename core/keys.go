package core

// Metadata keys written by the source normalizers and read when
// projecting documents to experts.
const (
	KeyFullName        = "full_name"
	KeyHeadline        = "headline"
	KeyCurrentTitle    = "current_title"
	KeyCurrentCompany  = "current_company"
	KeyLocation        = "location"
	KeyIndustry        = "industry"
	KeySkills          = "skills"
	KeyPublications    = "publications"
	KeyCareerLevel     = "career_level"
	KeyProfileURN      = "urn_id"
	KeyTitle           = "title"
	KeyAuthors         = "authors"
	KeyAuthorInterests = "author_interests"
	KeyYear            = "year"
	KeyURL             = "url"
	KeyPublicationInfo = "publication_info"
	KeyWebsite         = "website"
)
