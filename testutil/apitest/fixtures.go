package apitest

// Posts returns the fixed post fixtures.
func Posts() []Post {
	return []Post{
		{ID: 1, UserID: 1, Title: "sunt aut facere", Body: "quia et suscipit"},
		{ID: 2, UserID: 1, Title: "qui est esse", Body: "est rerum tempore vitae"},
		{ID: 3, UserID: 2, Title: "ea molestias quasi", Body: "et iusto sed quo iure"},
	}
}

// Comments returns the fixed comment fixtures.
func Comments() []Comment {
	return []Comment{
		{ID: 1, PostID: 1, Name: "id labore ex", Email: "eliseo@example.com", Body: "laudantium enim"},
		{ID: 2, PostID: 1, Name: "quo vero", Email: "jayne@example.com", Body: "est natus enim"},
		{ID: 3, PostID: 2, Name: "odio adipisci", Email: "nikita@example.com", Body: "quia molestiae"},
	}
}
