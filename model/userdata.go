package model

type UserData struct {
	Login          string `json:"login" bson:"_id"`
	Email          string `json:"email" bson:"email,omitempty"`
	HashedPassword string `json:"password_hash" bson:"password_hash,omitempty"`
}
