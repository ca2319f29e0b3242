package user

type UpdateProfileRequest struct {
	DisplayName  string `json:"displayName,omitempty"`
	ProfileImage string `json:"profileImage,omitempty"`
}

type RegisterDeviceRequest struct {
	Token string `json:"token"`
}

type LookupResponse struct {
	Record    *Record `json:"record"`
	StorageID string  `json:"storageId"`
}
