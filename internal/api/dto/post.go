package dto

import "nearme-service/internal/domain"

type LocationDTO struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type CreatePostRequest struct {
	Content string   `json:"content" validate:"required"`
	Lat     *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lon     *float64 `json:"lon" validate:"required,gte=-180,lte=180"`
}

type PostResponse struct {
	ID             string       `json:"id"`
	Content        string       `json:"content"`
	AuthorID       string       `json:"author_id"`
	AuthorName     string       `json:"author_name"`
	Location       *LocationDTO `json:"location"`
	CreatedAt      int64        `json:"created_at"`
	DistanceMeters *float64     `json:"distance_meters,omitempty"`
}

type ListPostResponse struct {
	Posts []PostResponse `json:"posts"`
}

type NearbyPostResponse struct {
	Observer LocationDTO    `json:"observer"`
	RadiusKm float64        `json:"radius_km"`
	Posts    []PostResponse `json:"posts"`
}

func NewPostResponse(p domain.Post) PostResponse {
	res := PostResponse{
		ID:             p.ID,
		Content:        p.Content,
		AuthorID:       p.AuthorID,
		AuthorName:     p.AuthorName,
		CreatedAt:      p.CreatedAt,
		DistanceMeters: p.DistanceMeters,
	}
	if p.Location != nil {
		res.Location = &LocationDTO{Lat: p.Location.Lat, Lon: p.Location.Lon}
	}
	return res
}

func NewPostResponses(posts []domain.Post) []PostResponse {
	out := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, NewPostResponse(p))
	}
	return out
}
